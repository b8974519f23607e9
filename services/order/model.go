package order

import (
	"math"
	"time"
)

type Status string

const (
	StatusPendingPayment       Status = "pending_payment"
	StatusConfirmed            Status = "confirmed"
	StatusPreparing            Status = "preparing"
	StatusReadyForPickup       Status = "ready_for_pickup"
	StatusOutForDelivery       Status = "out_for_delivery"
	StatusDelivered            Status = "delivered"
	StatusCancelled            Status = "cancelled"
	StatusRejectedByRestaurant Status = "rejected_by_restaurant"
	StatusDeliveryFailed       Status = "delivery_failed"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRejectedByRestaurant, StatusDeliveryFailed:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// MinorUnits converts a major unit amount to the processor's minor unit.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type Order struct {
	ID                  string        `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	OrderNumber         string        `gorm:"column:order_number;uniqueIndex;not null" json:"orderNumber"`
	CustomerID          string        `gorm:"column:customer_id;index:idx_orders_customer_created;not null" json:"customerId"`
	CustomerEmail       string        `gorm:"column:customer_email" json:"customerEmail,omitempty"`
	RestaurantID        string        `gorm:"column:restaurant_id;index;not null" json:"restaurantId"`
	DriverID            *string       `gorm:"column:driver_id;index" json:"driverId"`
	Status              Status        `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	Subtotal            float64       `gorm:"column:subtotal;type:numeric(10,2);not null" json:"subtotal"`
	DeliveryFee         float64       `gorm:"column:delivery_fee;type:numeric(10,2);not null" json:"deliveryFee"`
	Total               float64       `gorm:"column:total;type:numeric(10,2);not null" json:"total"`
	Currency            string        `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	PaymentStatus       PaymentStatus `gorm:"column:payment_status;type:varchar(16);not null" json:"paymentStatus"`
	PaymentIntentID     *string       `gorm:"column:payment_intent_id;index" json:"paymentIntentId,omitempty"`
	PostalCode          string        `gorm:"column:postal_code;type:varchar(8)" json:"postalCode"`
	City                string        `gorm:"column:city" json:"city"`
	Street              string        `gorm:"column:street" json:"street"`
	Region              string        `gorm:"column:region" json:"region"`
	ScheduledDeliveryAt *time.Time    `gorm:"column:scheduled_delivery_at" json:"scheduledDeliveryAt,omitempty"`
	DeliveredAt         *time.Time    `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	CancelReason        string        `gorm:"column:cancel_reason" json:"cancelReason,omitempty"`
	CreatedAt           time.Time     `gorm:"column:created_at;index:idx_orders_customer_created" json:"createdAt"`
	UpdatedAt           time.Time     `gorm:"column:updated_at" json:"updatedAt"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID         string  `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	OrderID    string  `gorm:"column:order_id;index;not null" json:"orderId"`
	MenuItemID string  `gorm:"column:menu_item_id;not null" json:"menuItemId"`
	Name       string  `gorm:"column:name;not null" json:"name"`
	Quantity   int     `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice  float64 `gorm:"column:unit_price;type:numeric(10,2);not null" json:"unitPrice"`
	LineTotal  float64 `gorm:"column:line_total;type:numeric(10,2);not null" json:"lineTotal"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
