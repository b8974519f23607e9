package driver

import (
	"time"

	"delivery-marketplace/services/approval"
)

type Driver struct {
	ID          string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	UserID      string          `gorm:"column:user_id;uniqueIndex;not null" json:"userId"`
	FullName    string          `gorm:"column:full_name;not null" json:"fullName"`
	Phone       string          `gorm:"column:phone" json:"phone,omitempty"`
	VehicleType string          `gorm:"column:vehicle_type;type:varchar(16)" json:"vehicleType"`
	Status      approval.Status `gorm:"column:status;type:varchar(16);index;not null;default:pending" json:"status"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (Driver) TableName() string {
	return "drivers"
}

func (d *Driver) IsActive() bool {
	return d.Status == approval.StatusActive
}

type Filter struct {
	Status approval.Status `form:"status"`
}
