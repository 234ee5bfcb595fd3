package models

import "time"

// MetaAdsLog registra cada decisão do auto-responder de tráfego que casou com o gatilho.
type MetaAdsLog struct {
	ID             int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CorrelationID  string     `gorm:"column:correlation_id;index" json:"correlation_id"`
	Event          string     `gorm:"default:''" json:"event"`
	Phone          string     `gorm:"default:''" json:"phone"`
	Trigger        string     `gorm:"column:trigger_words;default:''" json:"trigger"`
	MessageText    string     `gorm:"column:message_text;type:text" json:"message_text"`
	Sent           bool       `gorm:"not null;default:false" json:"sent"`
	Reason         string     `gorm:"default:''" json:"reason"`
	ResponseType   string     `gorm:"column:response_type;default:''" json:"response_type"`
	PayloadPreview string     `gorm:"column:payload_preview;type:text" json:"payload_preview"`
	CreatedAt      *time.Time `json:"created_at"`
}
