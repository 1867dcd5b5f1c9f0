package decision

import (
	"math"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

// Enhancer fills absent fields with policy defaults. It never overwrites a
// present value, so Enhance(Enhance(d).ParsedDecision) equals Enhance(d).
//
//	entry_price   = reference price
//	stop_loss     = entry -/+ StopLossPct
//	targets       = entry +/- each TargetLadderPct
//	confidence    = DefaultConfidence
//	position_size = min(BasePositionSize + PositionPerConfidence*confidence, MaxPositionSize)
//
// Leverage is never defaulted. Direction-dependent fields are left absent for
// UNRECOGNIZED decisions.
type Enhancer struct {
	policy Policy
}

func NewEnhancer(p Policy) (*Enhancer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.TargetLadderPct = append([]float64(nil), p.TargetLadderPct...)
	return &Enhancer{policy: p}, nil
}

func (e *Enhancer) Enhance(d model.ParsedDecision, ref float64) model.EnhancedDecision {
	out := clone(d)
	p := e.policy

	if out.EntryPrice == nil && ref > 0 {
		out.EntryPrice = ptr(ref)
	}
	if out.Confidence == nil {
		out.Confidence = ptr(p.DefaultConfidence)
	}
	if out.PositionSize == nil || *out.PositionSize == 0 {
		out.PositionSize = ptr(min(p.BasePositionSize+p.PositionPerConfidence*(*out.Confidence), p.MaxPositionSize))
	}

	if out.Action.Directional() && out.EntryPrice != nil && *out.EntryPrice > 0 {
		entry := *out.EntryPrice
		sign := 1.0
		if out.Action == model.ActionShort {
			sign = -1.0
		}
		if out.StopLoss == nil {
			out.StopLoss = ptr(roundPrice(entry * (1 - sign*p.StopLossPct/100)))
		}
		if len(out.Targets) == 0 {
			out.Targets = make([]float64, len(p.TargetLadderPct))
			for i, pct := range p.TargetLadderPct {
				out.Targets[i] = roundPrice(entry * (1 + sign*pct/100))
			}
		}
	}
	return model.EnhancedDecision{ParsedDecision: out}
}

func clone(d model.ParsedDecision) model.ParsedDecision {
	out := d
	out.EntryPrice = clonePtr(d.EntryPrice)
	out.StopLoss = clonePtr(d.StopLoss)
	out.PositionSize = clonePtr(d.PositionSize)
	out.Leverage = clonePtr(d.Leverage)
	out.Confidence = clonePtr(d.Confidence)
	out.Targets = append([]float64{}, d.Targets...)
	out.KeyFactors = append([]string{}, d.KeyFactors...)
	out.Risks = append([]string{}, d.Risks...)
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return ptr(*p)
}

func roundPrice(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
