package models

import "time"

type Dish struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	CategoryID  uint     `gorm:"not null" json:"category_id"`
	Category    Category `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"category"`
	Name        string   `gorm:"type:varchar(100);not null" json:"name"`
	Description string   `gorm:"type:text" json:"description"`
	Price       float64  `gorm:"type:decimal(10,2);not null" json:"price"`
	ImageURL    string   `gorm:"type:text" json:"image_url"`
	CreatedByID *uint    `json:"created_by_id,omitempty"`
	Active      bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
