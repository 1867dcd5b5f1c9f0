package decision

import (
	"errors"
	"fmt"
)

var ErrInvalidPolicy = errors.New("invalid decision policy")

// Policy holds the validation bounds and the defaults used to complete a decision.
type Policy struct {
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE" default:"3" validate:"gte=0,lte=10"`
	MaxLeverage   float64 `yaml:"max_leverage" env:"MAX_LEVERAGE" default:"20" validate:"gt=0"`

	StopLossPct           float64   `yaml:"stop_loss_pct" env:"STOP_LOSS_PCT" default:"3" validate:"gt=0,lt=100"`
	TargetLadderPct       []float64 `yaml:"target_ladder_pct" env:"TARGET_LADDER_PCT" envSeparator:"," default:"[3,5,10]" validate:"min=1,dive,gt=0,lt=100"`
	BasePositionSize      float64   `yaml:"base_position_size" env:"BASE_POSITION_SIZE" default:"5" validate:"gt=0,lte=100"`
	PositionPerConfidence float64   `yaml:"position_per_confidence" env:"POSITION_PER_CONFIDENCE" default:"2" validate:"gte=0"`
	MaxPositionSize       float64   `yaml:"max_position_size" env:"MAX_POSITION_SIZE" default:"25" validate:"gt=0,lte=100"`
	DefaultConfidence     float64   `yaml:"default_confidence" env:"DEFAULT_CONFIDENCE" default:"5" validate:"gte=0,lte=10"`
}

func DefaultPolicy() Policy {
	return Policy{
		MinConfidence:         3.0,
		MaxLeverage:           20,
		StopLossPct:           3,
		TargetLadderPct:       []float64{3, 5, 10},
		BasePositionSize:      5,
		PositionPerConfidence: 2,
		MaxPositionSize:       25,
		DefaultConfidence:     5,
	}
}

// Validate checks the invariants the enhancer relies on to produce
// direction-consistent defaults.
func (p Policy) Validate() error {
	switch {
	case p.MinConfidence < 0 || p.MinConfidence > 10:
		return fmt.Errorf("%w: min_confidence must be in [0, 10]", ErrInvalidPolicy)
	case p.MaxLeverage <= 0:
		return fmt.Errorf("%w: max_leverage must be positive", ErrInvalidPolicy)
	case p.StopLossPct <= 0 || p.StopLossPct >= 100:
		return fmt.Errorf("%w: stop_loss_pct must be in (0, 100)", ErrInvalidPolicy)
	case len(p.TargetLadderPct) == 0:
		return fmt.Errorf("%w: target_ladder_pct is empty", ErrInvalidPolicy)
	case p.BasePositionSize <= 0 || p.MaxPositionSize <= 0 || p.MaxPositionSize > 100:
		return fmt.Errorf("%w: position sizes must be in (0, 100]", ErrInvalidPolicy)
	case p.PositionPerConfidence < 0:
		return fmt.Errorf("%w: position_per_confidence must not be negative", ErrInvalidPolicy)
	case p.DefaultConfidence < 0 || p.DefaultConfidence > 10:
		return fmt.Errorf("%w: default_confidence must be in [0, 10]", ErrInvalidPolicy)
	}
	prev := 0.0
	for _, pct := range p.TargetLadderPct {
		if pct <= prev || pct >= 100 {
			return fmt.Errorf("%w: target_ladder_pct must be strictly increasing within (0, 100)", ErrInvalidPolicy)
		}
		prev = pct
	}
	return nil
}
