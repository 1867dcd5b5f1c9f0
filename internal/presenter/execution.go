package presenter

import "github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"

// Execution projects a decision into the instruction an order executor consumes.
// Execute is false unless the action is directional, validation passed and
// both entry and stop are known.
func Execution(e model.EnhancedDecision, v model.ValidationResult) model.ExecutionInstruction {
	ins := model.ExecutionInstruction{
		Symbol:  e.Symbol,
		Targets: append([]float64{}, e.Targets...),
	}
	switch e.Action {
	case model.ActionLong:
		ins.Side = model.SideBuy
	case model.ActionShort:
		ins.Side = model.SideSell
	}
	if e.EntryPrice != nil {
		ins.EntryPrice = *e.EntryPrice
	}
	if e.StopLoss != nil {
		ins.StopLoss = *e.StopLoss
	}
	if e.PositionSize != nil {
		ins.PositionSize = *e.PositionSize
	}
	if e.Leverage != nil {
		l := *e.Leverage
		ins.Leverage = &l
	}
	ins.Execute = e.Action.Directional() && v.IsValid && e.EntryPrice != nil && e.StopLoss != nil
	return ins
}
