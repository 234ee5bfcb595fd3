package models

import "time"

const CUSTOMER_CHANNEL_WHATSAPP = "whatsapp"

// CrmCustomer é o perfil do cliente, identificado pelo telefone E.164.
type CrmCustomer struct {
	ID               string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	PhoneE164        string     `gorm:"column:phone_e164;not null;unique_index" json:"phone_e164"`
	Name             string     `gorm:"default:''" json:"name"`
	PreferredChannel string     `gorm:"column:preferred_channel;default:''" json:"preferred_channel"`
	CreatedAt        *time.Time `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

// CrmCustomerImage guarda fotos de perfil, uma linha por URL distinta.
type CrmCustomerImage struct {
	ID          int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CustomerID  string     `gorm:"column:customer_id;not null;index" json:"customer_id"`
	URL         string     `gorm:"column:url;type:text;not null" json:"url"`
	Description string     `gorm:"default:''" json:"description"`
	CreatedAt   *time.Time `json:"created_at"`
}
