package models

import (
	"time"
)

// Tab statuses (lifecycle of a comanda)
const (
	StatusPending       = "pending"
	StatusInPreparation = "in_preparation"
	StatusReady         = "ready"
	StatusDelivered     = "delivered"
	StatusPaid          = "paid"
	StatusCancelled     = "cancelled"
)

// transitions maps a status to the set of statuses reachable from it.
// Paid and cancelled are terminal.
var transitions = map[string][]string{
	StatusPending:       {StatusInPreparation, StatusReady, StatusPaid, StatusCancelled},
	StatusInPreparation: {StatusReady, StatusPaid, StatusCancelled},
	StatusReady:         {StatusDelivered, StatusPaid, StatusCancelled},
	StatusDelivered:     {StatusPaid, StatusCancelled},
	StatusPaid:          {},
	StatusCancelled:     {},
}

// CanTransition reports whether a tab may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TerminalStatus reports whether a status admits no further transitions.
func TerminalStatus(status string) bool {
	return status == StatusPaid || status == StatusCancelled
}

// Tab is one comanda: a table order that shares an access code with its
// child tabs. Hierarchy is one level deep, a child never has children.
type Tab struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AccessCode       string    `gorm:"type:varchar(6);not null;index" json:"access_code"`
	TableID          uint      `gorm:"not null" json:"table_id"`
	Table            Table     `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"table"`
	CustomerName     string    `gorm:"type:varchar(100)" json:"customer_name"`
	Status           string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ParentTabID      *uint     `gorm:"index" json:"parent_tab_id,omitempty"`
	ParentTab        *Tab      `gorm:"foreignKey:ParentTabID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	CreatedByID      *uint     `json:"created_by_id,omitempty"`
	EstimatedMinutes *int      `json:"estimated_minutes,omitempty"`
	Items            []TabItem `gorm:"foreignKey:TabID" json:"items"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

// IsPrincipal -> a tab without a parent originates the access code.
func (t *Tab) IsPrincipal() bool {
	return t.ParentTabID == nil
}

// Total returns the sum of quantity * captured unit price over all items.
func (t *Tab) Total() float64 {
	var total float64
	for _, item := range t.Items {
		total += float64(item.Quantity) * item.UnitPrice
	}
	return total
}

// TabMember records that a device or user joined a tab family.
// The (tab, member) pair is unique so joining twice is a no-op.
type TabMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TabID     uint      `gorm:"not null;uniqueIndex:idx_tab_member" json:"tab_id"`
	Tab       Tab       `gorm:"foreignKey:TabID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	MemberKey string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_tab_member" json:"member_key"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
