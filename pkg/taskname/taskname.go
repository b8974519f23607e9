package taskname

const (
	// Loyalty tasks
	LoyaltyAward = "loyalty:award"
)
