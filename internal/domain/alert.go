package domain

import "time"

// AlertCondition selects the trigger direction of a price alert.
type AlertCondition string

const (
	AlertAbove AlertCondition = "above"
	AlertBelow AlertCondition = "below"
)

// Valid reports whether the condition is a known direction.
func (c AlertCondition) Valid() bool {
	return c == AlertAbove || c == AlertBelow
}

// PriceAlert is a user-defined price threshold watch. Once TriggeredAt is
// set the alert is permanently inert: toggling IsActive back on does not
// re-arm it, re-arming requires removing and re-creating the alert.
type PriceAlert struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	TargetPrice float64        `json:"targetPrice"`
	Condition   AlertCondition `json:"condition"`
	IsActive    bool           `json:"isActive"`
	CreatedAt   time.Time      `json:"createdAt"`
	TriggeredAt *time.Time     `json:"triggeredAt,omitempty"`
}

// Triggered reports whether the alert has already fired.
func (a PriceAlert) Triggered() bool {
	return a.TriggeredAt != nil
}

// TriggeredAlert is the audit record written when an alert fires.
type TriggeredAlert struct {
	AlertID     string         `json:"alertId"`
	Symbol      string         `json:"symbol"`
	TargetPrice float64        `json:"targetPrice"`
	Condition   AlertCondition `json:"condition"`
	Price       float64        `json:"price"`
	TriggeredAt time.Time      `json:"triggeredAt"`
}
