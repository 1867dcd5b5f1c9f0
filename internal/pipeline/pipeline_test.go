package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/decision"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/metrics"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/trigger"
)

type fakeRecorder struct {
	mu       sync.Mutex
	triggers []*model.TriggerSignal
	audits   []model.AuditRecord
	err      error
}

func (f *fakeRecorder) RecordTrigger(_ context.Context, sig *model.TriggerSignal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.triggers = append(f.triggers, sig)
	return "t-1", nil
}

func (f *fakeRecorder) RecordAudit(_ context.Context, rec *model.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	rec.ID = "a-1"
	f.audits = append(f.audits, *rec)
	return nil
}

func (f *fakeRecorder) RecentAudits(_ context.Context, symbol string, limit int) ([]model.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AuditRecord{}
	for i := len(f.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || f.audits[i].Symbol == symbol {
			out = append(out, f.audits[i])
		}
	}
	return out, nil
}

func (f *fakeRecorder) Close() error { return nil }

type captureNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (c *captureNotifier) Notify(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	return c.err
}

type fixture struct {
	p    *Pipeline
	rec  *fakeRecorder
	note *captureNotifier
	reg  *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ledger, err := trigger.NewMemoryLedger(5 * time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ev, err := trigger.NewEvaluator(trigger.DefaultThresholds(), ledger,
		trigger.WithClock(func() time.Time { return now }), trigger.WithObserver(m))
	if err != nil {
		t.Fatal(err)
	}
	policy := decision.DefaultPolicy()
	v, err := decision.NewValidator(policy)
	if err != nil {
		t.Fatal(err)
	}
	e, err := decision.NewEnhancer(policy)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{rec: &fakeRecorder{}, note: &captureNotifier{}, reg: reg}
	f.p = New(Deps{
		Evaluator: ev,
		Parser:    decision.NewParser(),
		Validator: v,
		Enhancer:  e,
		Recorder:  f.rec,
		Notifier:  f.note,
		Metrics:   m,
		Log:       zerolog.Nop(),
	})
	return f
}

func l3Snapshot(symbol string) model.MarketSnapshot {
	return model.MarketSnapshot{Symbol: symbol, PriceChange24h: -12, VolumeRatio: 6, WhaleTransfer: 60_000_000}
}

func TestHandleSnapshot_Trigger(t *testing.T) {
	f := newFixture(t)

	sig, err := f.p.HandleSnapshot(context.Background(), l3Snapshot("BTC"))
	if err != nil {
		t.Fatal(err)
	}
	if sig == nil || sig.Level != model.Level3 {
		t.Fatalf("signal = %+v", sig)
	}
	if len(f.rec.triggers) != 1 {
		t.Errorf("recorded triggers = %d", len(f.rec.triggers))
	}
	if len(f.note.msgs) != 1 || !strings.Contains(f.note.msgs[0], "BTC 异动触发") {
		t.Errorf("alerts = %q", f.note.msgs)
	}

	// Same symbol inside the window is suppressed.
	sig, err = f.p.HandleSnapshot(context.Background(), l3Snapshot("BTC"))
	if err != nil || sig != nil {
		t.Fatalf("second = %+v, %v", sig, err)
	}
	if len(f.note.msgs) != 1 {
		t.Error("cooldown must suppress the alert")
	}
	if got := f.p.Stats(); got.Total != 1 || got.Level3 != 1 {
		t.Errorf("stats = %+v", got)
	}
}

func TestHandleSnapshot_NoMatch(t *testing.T) {
	f := newFixture(t)
	sig, err := f.p.HandleSnapshot(context.Background(), model.MarketSnapshot{Symbol: "ETH", PriceChange24h: 0.2})
	if err != nil || sig != nil {
		t.Fatalf("got %+v, %v", sig, err)
	}
	if len(f.rec.triggers) != 0 || len(f.note.msgs) != 0 {
		t.Error("no side effects expected")
	}
}

func TestHandleSnapshot_MissingSymbol(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.HandleSnapshot(context.Background(), model.MarketSnapshot{PriceChange24h: 20})
	if !errors.Is(err, trigger.ErrMissingSymbol) {
		t.Fatalf("err = %v", err)
	}
}

func TestHandleSnapshot_CollaboratorFailures(t *testing.T) {
	f := newFixture(t)
	f.rec.err = errors.New("disk full")
	f.note.err = errors.New("telegram down")

	sig, err := f.p.HandleSnapshot(context.Background(), l3Snapshot("SOL"))
	if err != nil || sig == nil {
		t.Fatalf("failures must not fail the call: %+v, %v", sig, err)
	}
	want := `
# HELP sentinel_errors_total Collaborator errors by component
# TYPE sentinel_errors_total counter
sentinel_errors_total{component="notifier"} 1
sentinel_errors_total{component="recorder"} 1
`
	if err := testutil.GatherAndCompare(f.reg, strings.NewReader(want), "sentinel_errors_total"); err != nil {
		t.Error(err)
	}
}

func TestHandleDecision(t *testing.T) {
	f := newFixture(t)
	res := f.p.HandleDecision(context.Background(),
		"决策：【做多】 入场价：$67500 目标1：$68500 止损：$66000 仓位：15% 置信度：8/10", " btc ", 67400)

	if !res.Audit.IsValid || res.Audit.ID != "a-1" || res.Audit.Symbol != "BTC" {
		t.Errorf("audit = %+v", res.Audit)
	}
	ex := res.Execution
	if !ex.Execute || ex.Side != model.SideBuy || ex.EntryPrice != 67500 || ex.StopLoss != 66000 || ex.PositionSize != 15 {
		t.Errorf("execution = %+v", ex)
	}
	if len(ex.Targets) != 1 || ex.Targets[0] != 68500 {
		t.Errorf("targets = %v", ex.Targets)
	}
	if len(f.note.msgs) != 1 || f.note.msgs[0] != res.Message {
		t.Error("message should be delivered once")
	}
	if len(f.rec.audits) != 1 {
		t.Errorf("audits = %d", len(f.rec.audits))
	}
}

func TestHandleDecision_DefaultsAreValidated(t *testing.T) {
	f := newFixture(t)
	// Stop above the defaulted entry for a LONG.
	res := f.p.HandleDecision(context.Background(), "决策：【做多】 止损：$70000", "BTC", 67000)
	if res.Audit.IsValid || res.Execution.Execute {
		t.Fatalf("expected invalid decision: %+v", res.Audit)
	}
	if res.Audit.Decision.EntryPrice == nil || *res.Audit.Decision.EntryPrice != 67000 {
		t.Errorf("entry default = %v", res.Audit.Decision.EntryPrice)
	}
}

func TestHandleDecision_NoEntryNoReference(t *testing.T) {
	f := newFixture(t)
	res := f.p.HandleDecision(context.Background(), "决策：【做多】 目标1：$68500 止损：$66000", "BTC", 0)
	if res.Audit.IsValid || res.Execution.Execute {
		t.Fatalf("directional decision without an entry must be invalid: %+v", res.Audit)
	}
	found := false
	for _, issue := range res.Audit.Issues {
		if strings.Contains(issue, "no entry price") {
			found = true
		}
	}
	if !found {
		t.Errorf("issues = %q", res.Audit.Issues)
	}
}

func TestHandleSnapshot_SymbolCase(t *testing.T) {
	f := newFixture(t)
	first, err := f.p.HandleSnapshot(context.Background(), l3Snapshot("eth"))
	if err != nil || first == nil {
		t.Fatalf("first = %+v, %v", first, err)
	}
	if first.Symbol != "ETH" || f.rec.triggers[0].Symbol != "ETH" {
		t.Errorf("symbol = %q, recorded %q", first.Symbol, f.rec.triggers[0].Symbol)
	}
	if sig, _ := f.p.HandleSnapshot(context.Background(), l3Snapshot("ETH")); sig != nil {
		t.Errorf("ETH should share eth's cooldown, got %+v", sig)
	}
	if len(f.note.msgs) != 1 {
		t.Errorf("alerts = %d", len(f.note.msgs))
	}
}

func TestHandleDecision_Unrecognized(t *testing.T) {
	f := newFixture(t)
	res := f.p.HandleDecision(context.Background(), "市场不明朗，建议观望", "ETH", 3500)
	if res.Audit.Decision.Action != model.ActionUnrecognized || res.Execution.Execute {
		t.Errorf("result = %+v", res)
	}
	if res.Audit.Decision.StopLoss != nil || len(res.Audit.Decision.Targets) != 0 {
		t.Error("unrecognized decisions get no stop or targets")
	}
}

func TestRecentAudits(t *testing.T) {
	f := newFixture(t)
	f.p.HandleDecision(context.Background(), "决策：【做空】", "BTC", 67000)
	f.p.HandleDecision(context.Background(), "决策：【做多】", "ETH", 3500)

	got, err := f.p.RecentAudits(context.Background(), "eth", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Symbol != "ETH" {
		t.Errorf("audits = %+v", got)
	}
}

func TestNew_OptionalCollaborators(t *testing.T) {
	f := newFixture(t)
	p := New(Deps{
		Evaluator: f.p.eval,
		Parser:    f.p.parser,
		Validator: f.p.validator,
		Enhancer:  f.p.enhancer,
	})
	if _, err := p.HandleSnapshot(context.Background(), l3Snapshot("DOGE")); err != nil {
		t.Fatal(err)
	}
	res := p.HandleDecision(context.Background(), "决策：【做多】", "DOGE", 0.2)
	if res.Audit.ID != "" {
		t.Error("noop recorder should not assign ids")
	}
}
