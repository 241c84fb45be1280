package domain

// AlertCondition selects how a price alert compares against its target.
type AlertCondition string

const (
	AlertAbove AlertCondition = "above"
	AlertBelow AlertCondition = "below"
	// AlertEquals fires when the observed price is within 1e-4 of the
	// target. Like AlertAbove it reads the best ask by convention.
	AlertEquals AlertCondition = "equals"
)

// EqualsTolerance is the absolute tolerance for AlertEquals comparisons.
const EqualsTolerance = 1e-4

// AlertCallback is invoked when an alert fires, with the token, the price
// that satisfied the condition, and the configured target.
type AlertCallback func(tokenID string, observed, target float64)

// PriceAlert watches one token for a price condition. It transitions
// untriggered -> triggered exactly once and is inert afterwards. The
// Triggered flag is owned by the alert book and must only be touched
// under its lock.
type PriceAlert struct {
	TokenID   string
	Condition AlertCondition
	Target    float64
	Callback  AlertCallback
	Triggered bool
}
