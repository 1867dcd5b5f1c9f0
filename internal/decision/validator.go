package decision

import (
	"fmt"
	"strconv"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

// Validator checks a decision for internal consistency. It never fails;
// problems are reported as issues. Low confidence is advisory and does not
// by itself make a decision invalid.
type Validator struct {
	minConfidence float64
	maxLeverage   float64
}

func NewValidator(p Policy) (*Validator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Validator{minConfidence: p.MinConfidence, maxLeverage: p.MaxLeverage}, nil
}

func (v *Validator) Validate(d model.ParsedDecision) model.ValidationResult {
	issues := []string{}
	structural := false
	fail := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
		structural = true
	}

	if !d.Action.Directional() {
		fail("action %s is not executable; expected LONG or SHORT", d.Action)
	}
	// Execution needs an entry, so a directional decision without one is never silently valid.
	if d.Action.Directional() && d.EntryPrice == nil {
		fail("%s decision has no entry price", d.Action)
	}

	if d.EntryPrice != nil && *d.EntryPrice <= 0 {
		fail("entry price must be positive, got %s", num2s(*d.EntryPrice))
	}
	if d.StopLoss != nil && *d.StopLoss <= 0 {
		fail("stop loss must be positive, got %s", num2s(*d.StopLoss))
	}

	switch d.Action {
	case model.ActionLong:
		if e := d.EntryPrice; e != nil && *e > 0 {
			if d.StopLoss != nil && *d.StopLoss >= *e {
				fail("LONG stop loss %s must be below entry %s", num2s(*d.StopLoss), num2s(*e))
			}
			for _, t := range d.Targets {
				if t <= *e {
					fail("LONG target %s must be above entry %s", num2s(t), num2s(*e))
				}
			}
		}
		for i := 1; i < len(d.Targets); i++ {
			if d.Targets[i] <= d.Targets[i-1] {
				fail("LONG targets must be strictly increasing")
				break
			}
		}
	case model.ActionShort:
		if e := d.EntryPrice; e != nil && *e > 0 {
			if d.StopLoss != nil && *d.StopLoss <= *e {
				fail("SHORT stop loss %s must be above entry %s", num2s(*d.StopLoss), num2s(*e))
			}
			for _, t := range d.Targets {
				if t >= *e {
					fail("SHORT target %s must be below entry %s", num2s(t), num2s(*e))
				}
			}
		}
		for i := 1; i < len(d.Targets); i++ {
			if d.Targets[i] >= d.Targets[i-1] {
				fail("SHORT targets must be strictly decreasing")
				break
			}
		}
	}

	if p := d.PositionSize; p != nil && (*p <= 0 || *p > 100) {
		fail("position size %s%% outside (0, 100]", num2s(*p))
	}

	if c := d.Confidence; c != nil && *c < v.minConfidence {
		issues = append(issues, fmt.Sprintf("low confidence %s below %s", num2s(*c), num2s(v.minConfidence)))
	}

	if l := d.Leverage; l != nil && (*l <= 0 || *l > v.maxLeverage) {
		fail("leverage %sx outside (0, %s]", num2s(*l), num2s(v.maxLeverage))
	}

	return model.ValidationResult{IsValid: !structural, Issues: issues}
}

func num2s(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
