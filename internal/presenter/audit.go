package presenter

import (
	"math"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

// Audit projects a completed decision and its validation outcome into an
// audit record. ID and RecordedAt are left for the recorder to assign.
func Audit(symbol string, e model.EnhancedDecision, v model.ValidationResult) model.AuditRecord {
	rec := model.AuditRecord{
		Symbol:   symbol,
		Decision: e,
		IsValid:  v.IsValid,
		Issues:   append([]string{}, v.Issues...),
	}
	if e.EntryPrice == nil || e.StopLoss == nil || *e.EntryPrice <= 0 {
		return rec
	}
	entry, stop := *e.EntryPrice, *e.StopLoss
	risk := math.Abs(entry - stop)
	loss := round2(risk / entry * 100)
	rec.MaxLossPct = &loss
	if risk > 0 && len(e.Targets) > 0 {
		rr := round2(math.Abs(e.Targets[0]-entry) / risk)
		rec.RiskRewardRatio = &rr
	}
	return rec
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
