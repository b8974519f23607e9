package restaurant

import (
	"time"

	"delivery-marketplace/services/approval"
)

type Restaurant struct {
	ID         string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	OwnerID    string          `gorm:"column:owner_id;index;not null" json:"ownerId"`
	Name       string          `gorm:"column:name;not null" json:"name"`
	Slug       *string         `gorm:"column:slug;uniqueIndex" json:"slug,omitempty"`
	Status     approval.Status `gorm:"column:status;type:varchar(16);index;not null;default:pending" json:"status"`
	Street     string          `gorm:"column:street" json:"street"`
	PostalCode string          `gorm:"column:postal_code;type:varchar(8)" json:"postalCode"`
	City       string          `gorm:"column:city" json:"city"`
	Latitude   float64         `gorm:"column:latitude" json:"latitude"`
	Longitude  float64         `gorm:"column:longitude" json:"longitude"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (Restaurant) TableName() string {
	return "restaurants"
}

func (r *Restaurant) IsActive() bool {
	return r.Status == approval.StatusActive
}

type MenuItem struct {
	ID           string    `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	RestaurantID string    `gorm:"column:restaurant_id;index;not null" json:"restaurantId"`
	Name         string    `gorm:"column:name;not null" json:"name"`
	Price        float64   `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Available    bool      `gorm:"column:available;not null" json:"available"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (MenuItem) TableName() string {
	return "menu_items"
}

type Filter struct {
	Status approval.Status `form:"status"`
}
