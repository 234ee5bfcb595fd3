package models

import "time"

// Setting é um par nome/valor agrupado por contexto (ex.: "store-opening-hours").
type Setting struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Context   string     `gorm:"not null;index" json:"context"`
	Name      string     `gorm:"not null" json:"name"`
	Type      string     `gorm:"default:'string'" json:"type"`
	Value     string     `gorm:"type:text" json:"value"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
