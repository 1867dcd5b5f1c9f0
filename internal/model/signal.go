package model

import (
	"fmt"
	"strings"
	"time"
)

// TriggerLevel is the severity tier of a trigger. Higher is more severe.
type TriggerLevel int

const (
	LevelNone TriggerLevel = iota
	Level1
	Level2
	Level3
)

func (l TriggerLevel) String() string {
	switch l {
	case Level1:
		return "LEVEL_1"
	case Level2:
		return "LEVEL_2"
	case Level3:
		return "LEVEL_3"
	default:
		return "NONE"
	}
}

// MarshalText encodes the level with its wire token.
func (l TriggerLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a wire token back into a level.
func (l *TriggerLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "LEVEL_1":
		*l = Level1
	case "LEVEL_2":
		*l = Level2
	case "LEVEL_3":
		*l = Level3
	case "NONE", "":
		*l = LevelNone
	default:
		return fmt.Errorf("unknown trigger level %q", string(b))
	}
	return nil
}

// Trigger types, by precedence.
const (
	TriggerNewsDriven         = "news_driven"
	TriggerTraderDriven       = "trader_driven"
	TriggerWhaleActivity      = "whale_activity"
	TriggerPriceMovement      = "price_movement"
	TriggerVolumeSpike        = "volume_spike"
	TriggerLiquidationCascade = "liquidation_cascade"
	TriggerTechnicalSignal    = "technical_signal"
)

// TriggerSignal is emitted when a snapshot deserves escalation.
type TriggerSignal struct {
	Symbol        string       `json:"symbol"`
	Level         TriggerLevel `json:"level"`
	Priority      int          `json:"priority"` // 0 ~ 10
	TriggerType   string       `json:"trigger_type"`
	TriggerReason []string     `json:"trigger_reason"`
	Confidence    float64      `json:"confidence"` // 0 ~ 1
	CreatedAt     time.Time    `json:"created_at"`
}

// Reason joins the trigger reasons into one line.
func (s *TriggerSignal) Reason() string {
	return strings.Join(s.TriggerReason, "; ")
}

// TriggerStats counts successful triggers.
type TriggerStats struct {
	Total           uint64 `json:"total"`
	Level1          uint64 `json:"level_1"`
	Level2          uint64 `json:"level_2"`
	Level3          uint64 `json:"level_3"`
	ActiveCooldowns int    `json:"active_cooldowns"`
}
