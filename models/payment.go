package models

import "time"

// Payment methods
const (
	PaymentCash = "cash"
	PaymentPix  = "pix"
	PaymentCard = "card"
)

// Payment is one row of the append-only payment ledger. Rows are written by
// the tab service when a tab transitions to paid and are never updated.
type Payment struct {
	ID     uint    `gorm:"primaryKey" json:"id"`
	TabID  uint    `gorm:"not null;index" json:"tab_id"`
	Tab    Tab     `gorm:"foreignKey:TabID;references:ID" json:"-"`
	Amount float64 `gorm:"type:decimal(10,2);not null" json:"amount"`
	Method string  `gorm:"type:varchar(20);not null;default:'cash'" json:"method"`
	PaidAt time.Time `gorm:"not null" json:"paid_at"`
}
