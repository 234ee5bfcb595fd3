package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"zapihook/config"
	"zapihook/logger"
	"zapihook/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"go.uber.org/zap"
)

var conf config.Configuration

func SetConfigurations(configuration config.Configuration) {
	conf = configuration
}

// Connect abre conexão com DB (sqlite3 por padrão) e faz automigrate quando habilitado.
// Postgres pode subir depois da aplicação, então a conexão é tentada com backoff.
func Connect() (*gorm.DB, error) {
	gorm.NowFunc = func() time.Time { return time.Now().UTC() }

	database := conf.Database
	if database == "" {
		database = "sqlite3"
	}

	var (
		db  *gorm.DB
		err error
	)

	if database == "postgres" || database == "postgresql" {
		logger.Info("Utilizando conexão com o postgresql...")
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass + " sslmode=disable"

		bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
		err = backoff.RetryNotify(func() error {
			var openErr error
			db, openErr = gorm.Open("postgres", path)
			return openErr
		}, bo, func(err error, wait time.Duration) {
			logger.Warn("postgres not ready, retrying", zap.Error(err), zap.Duration("wait", wait))
		})
	} else {
		logger.Info("Utilizando conexão com o sqlite3...")
		dbPath := conf.DbPath
		if dbPath == "" {
			dbPath = "db/database.db"
		}
		if mkErr := os.MkdirAll(filepath.Dir(dbPath), 0750); mkErr != nil {
			return nil, mkErr
		}
		db, err = gorm.Open("sqlite3", dbPath)
	}

	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", database, err)
	}

	if conf.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// Migrate creates/updates the tables the webhook pipeline writes to.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.CrmCustomer{},
		&models.CrmCustomerImage{},
		&models.CrmCustomerEvent{},
		&models.Setting{},
		&models.MetaAdsLog{},
	).Error
}
