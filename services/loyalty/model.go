package loyalty

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	Earned   TransactionType = "earned"
	Redeemed TransactionType = "redeemed"
	Reversed TransactionType = "reversed"
	Adjusted TransactionType = "adjusted"
)

func (t TransactionType) String() string {
	switch t {
	case Earned, Redeemed, Reversed, Adjusted:
		return string(t)
	default:
		return ""
	}
}

// LoyaltyPoints is the denormalised balance of one customer. It is created
// lazily on first read.
type LoyaltyPoints struct {
	ID             string    `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CustomerID     string    `gorm:"column:customer_id;uniqueIndex;not null" json:"customerId"`
	Balance        int64     `gorm:"column:balance;not null;default:0" json:"balance"`
	LifetimeEarned int64     `gorm:"column:lifetime_earned;not null;default:0" json:"lifetimePoints"`
	ReferralCode   string    `gorm:"column:referral_code;type:varchar(16);index" json:"referralCode"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (LoyaltyPoints) TableName() string {
	return "loyalty_points"
}

// Transaction is append-only. Points is signed: positive for earned and
// negative for redeemed or reversed.
type Transaction struct {
	ID           snowflake.ID    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	CustomerID   string          `gorm:"column:customer_id;index;not null" json:"customerId"`
	Points       int64           `gorm:"column:points;not null" json:"points"`
	Type         TransactionType `gorm:"column:type;type:varchar(16);not null;uniqueIndex:idx_loyalty_tx_order_type" json:"type"`
	OrderID      *string         `gorm:"column:order_id;uniqueIndex:idx_loyalty_tx_order_type" json:"orderId,omitempty"`
	Description  string          `gorm:"column:description;type:text" json:"description"`
	BalanceAfter int64           `gorm:"column:balance_after;not null" json:"balanceAfter"`
	Metadata     datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;index" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "loyalty_transactions"
}

type Reward struct {
	Points          int64 `json:"points"`
	DiscountPercent int   `json:"discountPercent"`
	Available       bool  `json:"available"`
}

// rewardTiers is ordered by points ascending.
var rewardTiers = []Reward{
	{Points: 100, DiscountPercent: 10},
	{Points: 200, DiscountPercent: 20},
	{Points: 500, DiscountPercent: 50},
}

type Summary struct {
	Balance        int64          `json:"balance"`
	LifetimePoints int64          `json:"lifetimePoints"`
	ReferralCode   string         `json:"referralCode"`
	Rewards        []Reward       `json:"rewards"`
	Transactions   []*Transaction `json:"transactions"`
}

type BalanceReport struct {
	CustomerID    string `json:"customerId"`
	StoredBalance int64  `json:"storedBalance"`
	LedgerBalance int64  `json:"ledgerBalance"`
	Drift         int64  `json:"drift"`
	Consistent    bool   `json:"consistent"`
}

// AwardRequest carries the order amounts the earn rule is evaluated over.
type AwardRequest struct {
	CustomerID  string  `json:"customer_id"`
	OrderID     string  `json:"order_id"`
	Total       float64 `json:"total"`
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"delivery_fee"`
	Currency    string  `json:"currency"`
	TraceID     string  `json:"trace_id,omitempty"`
}
