package pipeline

import (
	"context"
	"time"

	"zapihook/db"
	"zapihook/models"
	"zapihook/storehours"
	"zapihook/tools"
)

// Sender envia mensagens pela Z-API. *tools.ZApiClient satisfaz.
type Sender interface {
	SendText(ctx context.Context, req tools.SendTextRequest) (*tools.SendMessageResponse, error)
	SendVideo(ctx context.Context, req tools.SendVideoRequest) (*tools.SendMessageResponse, error)
	SendButtonActions(ctx context.Context, req tools.SendButtonActionsRequest) (*tools.SendMessageResponse, error)
}

// CustomerStore is implemented by *db.CustomerRepository.
type CustomerStore interface {
	FindOrCreateCustomer(ctx context.Context, phoneE164 string, profile db.ProfileFields) (*models.CrmCustomer, bool, error)
	AppendEvent(ctx context.Context, ev *models.CrmCustomerEvent) (bool, error)
	RecentSentEvents(ctx context.Context, customerID string, since time.Time, limit int) ([]models.CrmCustomerEvent, error)
}

type SettingsSource interface {
	FindAllByContext(ctx context.Context, settingContext string) (map[string]string, error)
}

// HoursProvider is implemented by *storehours.Provider.
type HoursProvider interface {
	IsOpen(ctx context.Context) (bool, error)
	OffHoursConfig(ctx context.Context) (storehours.AutoReplyConfig, error)
}

type TrafficLogger interface {
	Create(ctx context.Context, entry *models.MetaAdsLog) error
}
