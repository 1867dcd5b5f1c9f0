package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/decision"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/metrics"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/notifier"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/presenter"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/recorder"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/trigger"
)

// Deps wires the pipeline. Recorder, Notifier and Metrics are optional.
type Deps struct {
	Evaluator *trigger.Evaluator
	Parser    *decision.Parser
	Validator *decision.Validator
	Enhancer  *decision.Enhancer
	Recorder  recorder.Recorder
	Notifier  notifier.Notifier
	Metrics   *metrics.Metrics
	Log       zerolog.Logger
}

// Pipeline routes snapshots through the evaluator and free-text decisions
// through parse, enhance, validate and present. Persistence and delivery
// failures are logged and never fail a call.
type Pipeline struct {
	eval      *trigger.Evaluator
	parser    *decision.Parser
	validator *decision.Validator
	enhancer  *decision.Enhancer
	rec       recorder.Recorder
	notify    notifier.Notifier
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// DecisionResult bundles the three projections of one processed decision.
type DecisionResult struct {
	Audit     model.AuditRecord          `json:"audit"`
	Execution model.ExecutionInstruction `json:"execution"`
	Message   string                     `json:"message"`
}

func New(d Deps) *Pipeline {
	p := &Pipeline{
		eval:      d.Evaluator,
		parser:    d.Parser,
		validator: d.Validator,
		enhancer:  d.Enhancer,
		rec:       d.Recorder,
		notify:    d.Notifier,
		metrics:   d.Metrics,
		log:       d.Log.With().Str("component", "pipeline").Logger(),
	}
	if p.rec == nil {
		p.rec = recorder.NewNoopRecorder()
	}
	if p.notify == nil {
		p.notify = notifier.Noop{}
	}
	if p.metrics == nil {
		p.metrics = metrics.New(prometheus.NewRegistry())
	}
	return p
}

// HandleSnapshot evaluates one snapshot. A fired signal is recorded and sent
// as an alert. Only evaluator errors are returned.
func (p *Pipeline) HandleSnapshot(ctx context.Context, snap model.MarketSnapshot) (*model.TriggerSignal, error) {
	start := time.Now()
	defer func() { p.metrics.RecordLatency("snapshot", time.Since(start)) }()

	p.metrics.RecordSnapshot()
	sig, err := p.eval.Evaluate(snap)
	if err != nil || sig == nil {
		return nil, err
	}

	if id, err := p.rec.RecordTrigger(ctx, sig); err != nil {
		p.metrics.RecordError("recorder")
		p.log.Error().Err(err).Str("symbol", sig.Symbol).Msg("record trigger")
	} else if id != "" {
		p.log.Debug().Str("id", id).Str("symbol", sig.Symbol).Msg("trigger recorded")
	}
	p.deliver(ctx, notifier.FormatTriggerAlert(sig))
	return sig, nil
}

// HandleDecision processes free-text decision output and sends the rendered
// message. ref is the current price; zero means unknown.
func (p *Pipeline) HandleDecision(ctx context.Context, text, symbol string, ref float64) DecisionResult {
	res := p.decide(ctx, text, symbol, ref)
	p.deliver(ctx, res.Message)
	return res
}

func (p *Pipeline) decide(ctx context.Context, text, symbol string, ref float64) DecisionResult {
	start := time.Now()
	defer func() { p.metrics.RecordLatency("decision", time.Since(start)) }()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	parsed := p.parser.Parse(text, symbol, ref)
	enhanced := p.enhancer.Enhance(parsed, ref)
	// Validate after defaults are filled so a parsed stop conflicting with a
	// defaulted entry is still caught.
	result := p.validator.Validate(enhanced.ParsedDecision)

	audit := presenter.Audit(symbol, enhanced, result)
	if err := p.rec.RecordAudit(ctx, &audit); err != nil {
		p.metrics.RecordError("recorder")
		p.log.Error().Err(err).Str("symbol", symbol).Msg("record audit")
	}
	p.metrics.RecordDecision(enhanced.Action, result.IsValid)
	p.log.Info().Str("symbol", symbol).Str("action", string(enhanced.Action)).
		Bool("valid", result.IsValid).Int("issues", len(result.Issues)).Msg("decision processed")

	return DecisionResult{
		Audit:     audit,
		Execution: presenter.Execution(enhanced, result),
		Message:   presenter.Message(enhanced, result),
	}
}

// UpdateRegime retunes the live thresholds.
func (p *Pipeline) UpdateRegime(hint model.RegimeHint) trigger.ThresholdSet {
	return p.eval.UpdateThresholds(hint)
}

func (p *Pipeline) Stats() model.TriggerStats        { return p.eval.Stats() }
func (p *Pipeline) Thresholds() trigger.ThresholdSet { return p.eval.Thresholds() }
func (p *Pipeline) Regime() model.RegimeHint         { return p.eval.Regime() }

// RecentAudits reads back stored audits, newest first.
func (p *Pipeline) RecentAudits(ctx context.Context, symbol string, limit int) ([]model.AuditRecord, error) {
	return p.rec.RecentAudits(ctx, strings.ToUpper(symbol), limit)
}

func (p *Pipeline) deliver(ctx context.Context, text string) {
	if err := p.notify.Notify(ctx, text); err != nil {
		p.metrics.RecordError("notifier")
		p.log.Error().Err(err).Msg("send notification")
	}
}
