package model

import "time"

// Action is the trade direction of a decision.
type Action string

const (
	ActionLong         Action = "LONG"
	ActionShort        Action = "SHORT"
	ActionUnrecognized Action = "UNRECOGNIZED"
)

// Directional reports whether the action is LONG or SHORT.
func (a Action) Directional() bool {
	return a == ActionLong || a == ActionShort
}

// Urgency is how soon a decision should be acted on.
type Urgency string

const (
	UrgencyImmediate Urgency = "IMMEDIATE"
	UrgencySoon      Urgency = "SOON"
	UrgencyNormal    Urgency = "NORMAL"
)

// RiskLevel is the self-assessed risk of a decision.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParsedDecision is the best-effort structure extracted from free text.
// Nil pointers mean the field was not found.
type ParsedDecision struct {
	Symbol       string    `json:"symbol"`
	Action       Action    `json:"action"`
	EntryPrice   *float64  `json:"entry_price"`
	Targets      []float64 `json:"targets"`
	StopLoss     *float64  `json:"stop_loss"`
	PositionSize *float64  `json:"position_size"` // percent
	Leverage     *float64  `json:"leverage"`
	Confidence   *float64  `json:"confidence"` // 0 ~ 10
	Urgency      Urgency   `json:"urgency"`
	RiskLevel    RiskLevel `json:"risk_level"`
	TimeFrame    string    `json:"time_frame,omitempty"`
	KeyFactors   []string  `json:"key_factors"`
	Risks        []string  `json:"risks"`
}

// NewParsedDecision returns an empty decision with the default enum values.
func NewParsedDecision(symbol string) ParsedDecision {
	return ParsedDecision{
		Symbol:     symbol,
		Action:     ActionUnrecognized,
		Targets:    []float64{},
		Urgency:    UrgencyNormal,
		RiskLevel:  RiskMedium,
		KeyFactors: []string{},
		Risks:      []string{},
	}
}

// EnhancedDecision is a ParsedDecision whose gaps were filled by policy defaults.
// Leverage is never defaulted; nil means unlevered.
type EnhancedDecision struct {
	ParsedDecision
}

// ValidationResult is the outcome of checking a decision for consistency.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues"`
}

// AuditRecord is the complete structured record of one decision.
type AuditRecord struct {
	ID              string           `json:"id,omitempty"`
	Symbol          string           `json:"symbol"`
	Decision        EnhancedDecision `json:"decision"`
	IsValid         bool             `json:"is_valid"`
	Issues          []string         `json:"issues"`
	RiskRewardRatio *float64         `json:"risk_reward_ratio"`
	MaxLossPct      *float64         `json:"max_loss_pct"`
	RecordedAt      time.Time        `json:"recorded_at,omitempty"`
}

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// ExecutionInstruction is the only record an order executor consumes.
type ExecutionInstruction struct {
	Execute      bool      `json:"execute"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	Targets      []float64 `json:"targets"`
	StopLoss     float64   `json:"stop_loss"`
	PositionSize float64   `json:"position_size"`
	Leverage     *float64  `json:"leverage"`
}
