package activity

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EntityOrder      = "order"
	EntityRestaurant = "restaurant"
	EntityDriver     = "driver"
	EntityLoyalty    = "loyalty"
)

// ActivityLog rows are append-only.
type ActivityLog struct {
	ID         snowflake.ID   `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	UserID     *string        `gorm:"column:user_id;index" json:"userId"`
	EntityType string         `gorm:"column:entity_type;type:varchar(32);index:idx_activity_entity;not null" json:"entityType"`
	EntityID   string         `gorm:"column:entity_id;index:idx_activity_entity;not null" json:"entityId"`
	Action     string         `gorm:"column:action;type:varchar(64);not null" json:"action"`
	Details    datatypes.JSON `gorm:"column:details;type:jsonb" json:"details"`
	IPAddress  string         `gorm:"column:ip_address;type:varchar(64)" json:"ipAddress,omitempty"`
	CreatedAt  time.Time      `gorm:"column:created_at;index" json:"createdAt"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

type Entry struct {
	// UserID is the acting user, empty for system actions.
	UserID     string
	EntityType string
	EntityID   string
	Action     string
	Details    map[string]any
	IPAddress  string
}

type Filter struct {
	EntityType string `form:"entityType"`
	EntityID   string `form:"entityId"`
	UserID     string `form:"userId"`
}
