package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"zapihook/models"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// ErrProfileImage marca falha só na foto de perfil: o cliente retornado é válido.
var ErrProfileImage = errors.New("customer profile image")

// ProfileFields são os dados de perfil vindos do webhook.
// Sync=false significa que o perfil foi sincronizado há pouco: nada é atualizado,
// mas o cliente ainda é criado se não existir.
type ProfileFields struct {
	Name  string
	Photo string
	Sync  bool
}

// CustomerRepository persists customers and their timeline events.
// jinzhu/gorm has no context plumbing; ctx is checked before each statement.
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindOrCreateCustomer returns the customer for phoneE164, creating it on first
// contact. Blank profile fields are filled only when profile.Sync is set.
func (r *CustomerRepository) FindOrCreateCustomer(ctx context.Context, phoneE164 string, profile ProfileFields) (*models.CrmCustomer, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	name := strings.TrimSpace(profile.Name)
	photo := strings.TrimSpace(profile.Photo)

	var customer models.CrmCustomer
	created := false

	err := r.db.Where("phone_e164 = ?", phoneE164).First(&customer).Error
	switch {
	case err == nil:
		if profile.Sync && name != "" && isBlank(customer.Name) {
			if err := r.db.Model(&customer).Update("name", name).Error; err != nil {
				return nil, false, fmt.Errorf("update customer name: %w", err)
			}
		}
	case gorm.IsRecordNotFoundError(err):
		customer = models.CrmCustomer{
			ID:               uuid.NewString(),
			PhoneE164:        phoneE164,
			Name:             name,
			PreferredChannel: models.CUSTOMER_CHANNEL_WHATSAPP,
		}
		if err := r.db.Create(&customer).Error; err != nil {
			// outro request pode ter criado o mesmo telefone (unique index)
			if findErr := r.db.Where("phone_e164 = ?", phoneE164).First(&customer).Error; findErr != nil {
				return nil, false, fmt.Errorf("create customer: %w", err)
			}
		} else {
			created = true
		}
	default:
		return nil, false, fmt.Errorf("find customer: %w", err)
	}

	if profile.Sync && photo != "" {
		if err := ctx.Err(); err != nil {
			return &customer, created, err
		}
		if err := r.ensureImage(customer.ID, photo); err != nil {
			return &customer, created, fmt.Errorf("%w: %w", ErrProfileImage, err)
		}
	}

	return &customer, created, nil
}

func (r *CustomerRepository) ensureImage(customerID, url string) error {
	var count int
	if err := r.db.Model(&models.CrmCustomerImage{}).
		Where("customer_id = ? AND url = ?", customerID, url).
		Count(&count).Error; err != nil {
		return fmt.Errorf("find customer image: %w", err)
	}
	if count > 0 {
		return nil
	}
	img := models.CrmCustomerImage{
		CustomerID:  customerID,
		URL:         url,
		Description: "WhatsApp profile photo",
	}
	if err := r.db.Create(&img).Error; err != nil {
		return fmt.Errorf("create customer image: %w", err)
	}
	return nil
}

// AppendEvent inserts ev unless an event with the same ExternalID exists, in
// which case ev is overwritten with the stored row. Reports whether it inserted.
func (r *CustomerRepository) AppendEvent(ctx context.Context, ev *models.CrmCustomerEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if strings.TrimSpace(ev.ExternalID) == "" {
		return false, fmt.Errorf("append customer event: external_id is required")
	}

	var existing models.CrmCustomerEvent
	err := r.db.Where("external_id = ?", ev.ExternalID).First(&existing).Error
	if err == nil {
		*ev = existing
		return false, nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return false, fmt.Errorf("find customer event: %w", err)
	}

	if ev.PayloadRaw == "" && ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return false, fmt.Errorf("marshal event payload: %w", err)
		}
		ev.PayloadRaw = string(b)
	}

	if err := r.db.Create(ev).Error; err != nil {
		if findErr := r.db.Where("external_id = ?", ev.ExternalID).First(&existing).Error; findErr == nil {
			*ev = existing
			return false, nil
		}
		return false, fmt.Errorf("append customer event: %w", err)
	}
	return true, nil
}

// RecentSentEvents returns up to limit SENT events of the customer created at
// or after since, newest first.
func (r *CustomerRepository) RecentSentEvents(ctx context.Context, customerID string, since time.Time, limit int) ([]models.CrmCustomerEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []models.CrmCustomerEvent
	if err := r.db.
		Where("customer_id = ? AND event_type = ?", customerID, models.CUSTOMER_EVENT_SENT).
		Where("created_at >= ?", since.UTC()).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("recent sent events: %w", err)
	}
	return events, nil
}

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}
