package trigger

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEvaluator(t *testing.T, clock *fakeClock, opts ...Option) *Evaluator {
	t.Helper()
	l, err := NewMemoryLedger(5 * time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	e, err := NewEvaluator(DefaultThresholds(), l, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func level3Snapshot(symbol string) model.MarketSnapshot {
	return model.MarketSnapshot{
		Symbol:         symbol,
		PriceChange24h: -12,
		VolumeRatio:    6,
		WhaleTransfer:  60_000_000,
	}
}

func TestEvaluate_Level3(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	sig, err := e.Evaluate(level3Snapshot("BTC"))
	if err != nil {
		t.Fatal(err)
	}
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Level != model.Level3 {
		t.Errorf("level = %s, want LEVEL_3", sig.Level)
	}
	if sig.Priority < baseScore[model.Level3] {
		t.Errorf("priority %d below tier-3 base", sig.Priority)
	}
	if len(sig.TriggerReason) != 3 {
		t.Errorf("reasons = %v", sig.TriggerReason)
	}
	if sig.TriggerType != model.TriggerWhaleActivity {
		t.Errorf("type = %s", sig.TriggerType)
	}
}

func TestEvaluate_PanicCompletesLevel3(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	snap := model.MarketSnapshot{Symbol: "ETH", PriceChange24h: 11, VolumeRatio: 5, PanicSelling: true}
	sig, _ := e.Evaluate(snap)
	if sig == nil || sig.Level != model.Level3 {
		t.Fatalf("expected LEVEL_3, got %+v", sig)
	}
}

func TestEvaluate_PriorityCap(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	snap := model.MarketSnapshot{
		Symbol:             "BTC",
		PriceChange24h:     15,
		VolumeRatio:        8,
		WhaleTransfer:      80_000_000,
		Liquidations:       200_000_000,
		PanicSelling:       true,
		TopTradersAction:   []string{"a", "b", "c"},
		SocialMentionSpike: 5,
		NewsImportance:     9,
	}
	sig, _ := e.Evaluate(snap)
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Priority != maxPriority {
		t.Errorf("priority = %d, want %d", sig.Priority, maxPriority)
	}
	if sig.TriggerType != model.TriggerNewsDriven {
		t.Errorf("type = %s, want news_driven", sig.TriggerType)
	}
}

func TestEvaluate_CorroborationRaisesPriority(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	plain, _ := e.Evaluate(model.MarketSnapshot{Symbol: "A", PriceChange24h: 2})
	boosted, _ := e.Evaluate(model.MarketSnapshot{
		Symbol: "B", PriceChange24h: 2, TopTradersAction: []string{"x", "y"}, SocialMentionSpike: 4,
	})
	if plain == nil || boosted == nil {
		t.Fatal("expected two signals")
	}
	if plain.Level != model.Level1 || boosted.Level != model.Level1 {
		t.Fatalf("levels = %s, %s", plain.Level, boosted.Level)
	}
	if boosted.Priority != plain.Priority+2 {
		t.Errorf("priority = %d, want %d", boosted.Priority, plain.Priority+2)
	}
	if boosted.TriggerType != model.TriggerTraderDriven {
		t.Errorf("type = %s", boosted.TriggerType)
	}
}

func TestEvaluate_Cooldown(t *testing.T) {
	clock := newFakeClock()
	e := newTestEvaluator(t, clock)

	first, _ := e.Evaluate(level3Snapshot("BTC"))
	second, err := e.Evaluate(level3Snapshot("BTC"))
	if first == nil {
		t.Fatal("first evaluate should trigger")
	}
	if second != nil || err != nil {
		t.Fatalf("second evaluate should be blocked, got %+v, %v", second, err)
	}
	if s := e.Stats(); s.Total != 1 || s.ActiveCooldowns != 1 {
		t.Errorf("stats = %+v", s)
	}

	clock.Advance(5 * time.Minute)
	if sig, _ := e.Evaluate(level3Snapshot("BTC")); sig == nil {
		t.Error("should trigger again after cooldown expiry")
	}
}

func TestEvaluate_StatsPerLevel(t *testing.T) {
	clock := newFakeClock()
	e := newTestEvaluator(t, clock)

	snaps := []model.MarketSnapshot{
		{Symbol: "BTC", PriceChange24h: 2},
		{Symbol: "BTC", PriceChange24h: 4, VolumeRatio: 4},
		level3Snapshot("BTC"),
	}
	for i, s := range snaps {
		sig, err := e.Evaluate(s)
		if err != nil || sig == nil {
			t.Fatalf("snapshot %d: sig=%v err=%v", i, sig, err)
		}
		if sig.Level != model.TriggerLevel(i+1) {
			t.Errorf("snapshot %d: level = %s", i, sig.Level)
		}
		clock.Advance(6 * time.Minute)
	}

	got := e.Stats()
	got.ActiveCooldowns = 0
	want := model.TriggerStats{Total: 3, Level1: 1, Level2: 1, Level3: 1}
	if got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
}

func TestEvaluate_MissingSymbol(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	snap := level3Snapshot("  ")
	sig, err := e.Evaluate(snap)
	if !errors.Is(err, ErrMissingSymbol) {
		t.Fatalf("expected ErrMissingSymbol, got %v", err)
	}
	if sig != nil {
		t.Error("expected nil signal")
	}
	if s := e.Stats(); s != (model.TriggerStats{}) {
		t.Errorf("state mutated: %+v", s)
	}
}

func TestEvaluate_NeutralDefaults(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	sig, err := e.Evaluate(model.MarketSnapshot{Symbol: "BTC"})
	if err != nil || sig != nil {
		t.Fatalf("empty snapshot should not trigger: %v, %v", sig, err)
	}
	if s := e.Stats(); s.Total != 0 || s.ActiveCooldowns != 0 {
		t.Errorf("no-match should have no side effects: %+v", s)
	}
}

func TestEvaluate_RSIExtremity(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	rsi := 82.0
	sig, _ := e.Evaluate(model.MarketSnapshot{Symbol: "SOL", RSI: &rsi})
	if sig == nil || sig.Level != model.Level1 {
		t.Fatalf("expected LEVEL_1 from RSI, got %+v", sig)
	}
	if sig.TriggerType != model.TriggerTechnicalSignal {
		t.Errorf("type = %s", sig.TriggerType)
	}
}

func TestUpdateThresholds(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	base := e.Thresholds().Tiers[1].PriceChange

	bull := e.UpdateThresholds(model.RegimeHint{Trend: model.TrendBull}).Tiers[1].PriceChange
	again := e.UpdateThresholds(model.RegimeHint{Trend: model.TrendBull}).Tiers[1].PriceChange
	bear := e.UpdateThresholds(model.RegimeHint{Trend: model.TrendBear}).Tiers[1].PriceChange

	if !(base < bull && bull < bear) {
		t.Errorf("expected base < bull < bear, got %.2f %.2f %.2f", base, bull, bear)
	}
	if again != bull {
		t.Errorf("repeated hint compounded: %.2f vs %.2f", again, bull)
	}

	th := e.UpdateThresholds(model.RegimeHint{Volatility: model.VolatilityHigh})
	if th.Tiers[1].PriceChange != bear {
		t.Error("volatility-only hint should keep trend adjustment")
	}
	if th.Tiers[0].PriceChange >= e.Baseline().Tiers[0].PriceChange {
		t.Error("high volatility should lower tier-1 floor")
	}

	th = e.UpdateThresholds(model.RegimeHint{Trend: "sideways", Volatility: "extreme"})
	if got := e.Regime(); got.Trend != model.TrendBear || got.Volatility != model.VolatilityHigh {
		t.Errorf("unrecognized hint changed regime: %+v", got)
	}

	th = e.UpdateThresholds(model.RegimeHint{Trend: model.TrendNeutral, Volatility: model.VolatilityNormal})
	if th != e.Baseline() {
		t.Error("neutral/normal should restore the baseline")
	}
}

func TestUpdateThresholds_AffectsEvaluate(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	snap := model.MarketSnapshot{Symbol: "BTC", PriceChange24h: 3.5, WhaleTransfer: 20_000_000}
	e.UpdateThresholds(model.RegimeHint{Trend: model.TrendBear})
	sig, _ := e.Evaluate(snap)
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Level != model.Level1 {
		t.Errorf("bear regime should demote 3.5%% move below LEVEL_2, got %s", sig.Level)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	triggers []model.TriggerLevel
	blocks   []model.TriggerLevel
}

func (o *recordingObserver) ObserveTrigger(l model.TriggerLevel, _ int) {
	o.mu.Lock()
	o.triggers = append(o.triggers, l)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveCooldownBlock(l model.TriggerLevel) {
	o.mu.Lock()
	o.blocks = append(o.blocks, l)
	o.mu.Unlock()
}

func TestEvaluate_Observer(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEvaluator(t, newFakeClock(), WithObserver(obs))
	e.Evaluate(level3Snapshot("BTC"))
	e.Evaluate(level3Snapshot("BTC"))
	if len(obs.triggers) != 1 || len(obs.blocks) != 1 {
		t.Errorf("observer saw triggers=%v blocks=%v", obs.triggers, obs.blocks)
	}
}

type failingLedger struct{}

func (failingLedger) TryAcquire(string, time.Time) (bool, time.Duration, error) {
	return false, 0, errors.New("connection refused")
}
func (failingLedger) Remaining(string, time.Time) (time.Duration, error) { return 0, nil }
func (failingLedger) Active(time.Time) (int, error)                     { return 0, nil }
func (failingLedger) Prune(time.Time) (int, error)                      { return 0, nil }
func (failingLedger) Window() time.Duration                             { return time.Minute }

func TestEvaluate_LedgerFailure(t *testing.T) {
	e, err := NewEvaluator(DefaultThresholds(), failingLedger{})
	if err != nil {
		t.Fatal(err)
	}
	sig, err := e.Evaluate(level3Snapshot("BTC"))
	if sig != nil || err != nil {
		t.Fatalf("ledger failure should suppress quietly, got %v, %v", sig, err)
	}
	if e.Stats().Total != 0 {
		t.Error("counters changed on ledger failure")
	}
}

func TestNewEvaluator_InvalidConfig(t *testing.T) {
	l, _ := NewMemoryLedger(time.Minute)
	th := DefaultThresholds()
	th.Tiers[2].VolumeRatio = 1
	if _, err := NewEvaluator(th, l); !errors.Is(err, ErrInvalidThresholds) {
		t.Errorf("expected ErrInvalidThresholds, got %v", err)
	}
	if _, err := NewEvaluator(DefaultThresholds(), l, WithRegimeFactors(RegimeFactors{Bull: 2, Bear: 1.5, HighVolatility: 0.5})); !errors.Is(err, ErrInvalidThresholds) {
		t.Errorf("expected ErrInvalidThresholds for factors, got %v", err)
	}
	if _, err := NewEvaluator(DefaultThresholds(), l, WithRegimeFactors(RegimeFactors{Bull: 2, Bear: 4, HighVolatility: 0.5})); !errors.Is(err, ErrInvalidThresholds) {
		t.Errorf("expected ErrInvalidThresholds for saturating bear factor, got %v", err)
	}
}

func TestEvaluate_SymbolCaseShareCooldown(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())

	first, err := e.Evaluate(level3Snapshot(" btc "))
	if err != nil || first == nil {
		t.Fatalf("first evaluate should trigger, got %+v, %v", first, err)
	}
	if first.Symbol != "BTC" {
		t.Errorf("symbol = %q, want BTC", first.Symbol)
	}
	if second, _ := e.Evaluate(level3Snapshot("BTC")); second != nil {
		t.Errorf("BTC should share btc's cooldown, got %+v", second)
	}
	if s := e.Stats(); s.Total != 1 || s.ActiveCooldowns != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestEvaluate_Confidence(t *testing.T) {
	tests := []struct {
		name  string
		snap  model.MarketSnapshot
		level model.TriggerLevel
		want  float64
	}{
		// price, volume, whale out of 5 tier dimensions plus traders, social, news.
		{"level3", level3Snapshot("A"), model.Level3, 3.0 / 8},
		// price, volume out of 5 plus panic, traders, social, news.
		{"level2", model.MarketSnapshot{Symbol: "B", PriceChange24h: 4, VolumeRatio: 3.5}, model.Level2, 2.0 / 9},
		// price out of 3 plus 4 corroborators, then one corroborator.
		{"level1", model.MarketSnapshot{Symbol: "C", PriceChange24h: 2}, model.Level1, 1.0 / 7},
		{"level1 corroborated", model.MarketSnapshot{Symbol: "D", PriceChange24h: 2, NewsImportance: 8}, model.Level1, 2.0 / 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEvaluator(t, newFakeClock())
			sig, err := e.Evaluate(tt.snap)
			if err != nil || sig == nil {
				t.Fatalf("expected a signal, got %+v, %v", sig, err)
			}
			if sig.Level != tt.level {
				t.Fatalf("level = %s, want %s", sig.Level, tt.level)
			}
			if math.Abs(sig.Confidence-tt.want) > 1e-9 {
				t.Errorf("confidence = %.4f, want %.4f", sig.Confidence, tt.want)
			}
		})
	}
}

func TestEvaluate_ConcurrentSameSymbol(t *testing.T) {
	e := newTestEvaluator(t, newFakeClock())
	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sig, _ := e.Evaluate(level3Snapshot("BTC")); sig != nil {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()
	if fired.Load() != 1 {
		t.Errorf("signals = %d, want 1", fired.Load())
	}
	if s := e.Stats(); s.Total != 1 || s.Level3 != 1 {
		t.Errorf("stats = %+v", s)
	}
}
