package models

import "time"

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);unique;not null" json:"name"`
	Icon        string    `gorm:"type:varchar(10)" json:"icon"`
	CreatedByID *uint     `json:"created_by_id,omitempty"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
