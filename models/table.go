package models

import "time"

// Table statuses
const (
	TableAvailable = "available"
	TableOccupied  = "occupied"
	TableReserved  = "reserved"
)

type Table struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Number   int    `gorm:"unique;not null" json:"number"`
	Capacity int    `json:"capacity"`
	Status   string `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	// AttentionRequested is set when a customer calls a waiter from the table.
	AttentionRequested bool      `gorm:"not null;default:false" json:"attention_requested"`
	Active             bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`
}
