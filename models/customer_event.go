package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

/************************************************
/**** MARK: CUSTOMER EVENT TYPES ****/
/************************************************/
const CUSTOMER_EVENT_RECEIVED = "WHATSAPP_RECEIVED"
const CUSTOMER_EVENT_SENT = "WHATSAPP_SENT"

const CUSTOMER_EVENT_SOURCE_WEBHOOK = "zapi-webhook"
const CUSTOMER_EVENT_SOURCE_OFF_HOURS = "zapi-off-hours"
const CUSTOMER_EVENT_SOURCE_TRAFFIC = "zapi-traffic"

// EventPayload is the structured JSON column of a customer event.
type EventPayload map[string]any

func (p EventPayload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *EventPayload) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("event payload: unsupported type %T", src)
	}
	if len(b) == 0 {
		*p = nil
		return nil
	}
	out := EventPayload{}
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*p = out
	return nil
}

// CrmCustomerEvent é um item da timeline do cliente (mensagem recebida ou enviada).
// ExternalID é único: gravar duas vezes o mesmo correlation id não duplica o evento.
type CrmCustomerEvent struct {
	ID         int64        `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CustomerID string       `gorm:"column:customer_id;not null;index" json:"customer_id"`
	EventType  string       `gorm:"column:event_type;not null;index" json:"event_type"`
	Source     string       `gorm:"default:''" json:"source"`
	ExternalID string       `gorm:"column:external_id;not null;unique_index" json:"external_id"`
	Payload    EventPayload `gorm:"type:text" json:"payload"`
	PayloadRaw string       `gorm:"column:payload_raw;type:text" json:"payload_raw"`
	CreatedAt  *time.Time   `gorm:"index" json:"created_at"`
}
