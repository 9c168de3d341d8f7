package models

import (
	"time"
)

type TabItem struct {
	ID    uint `gorm:"primaryKey" json:"id"`
	TabID uint `gorm:"not null;index" json:"tab_id"`
	// Omitting Tab field from JSON to avoid recursive nesting
	Tab    Tab  `gorm:"foreignKey:TabID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	DishID uint `gorm:"not null" json:"dish_id"`
	Dish   Dish `gorm:"foreignKey:DishID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"dish"`
	// ActorKey identifies the device or user that placed the item, if known.
	ActorKey string `gorm:"type:varchar(100)" json:"actor_key,omitempty"`
	Quantity int    `gorm:"not null" json:"quantity"`
	// UnitPrice is captured from the dish at creation time. Later menu price
	// changes must not alter historical items.
	UnitPrice float64   `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Note      string    `gorm:"type:text" json:"note"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
