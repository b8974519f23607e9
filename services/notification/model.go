package notification

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TypeOrderUpdate      = "order_update"
	TypeRestaurantStatus = "restaurant_status"
	TypeDriverStatus     = "driver_status"
	TypeLoyalty          = "loyalty"
)

type Notification struct {
	ID        string         `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	UserID    string         `gorm:"column:user_id;index:idx_notifications_user;not null" json:"userId"`
	Type      string         `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Body      string         `gorm:"column:body" json:"body"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb" json:"data"`
	IsRead    bool           `gorm:"column:is_read;not null;default:false" json:"isRead"`
	CreatedAt time.Time      `gorm:"column:created_at;index:idx_notifications_user" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Message is what producers hand to Notify.
type Message struct {
	UserID string
	Type   string
	Title  string
	Body   string
	Data   map[string]any
}
