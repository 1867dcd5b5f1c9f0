package trigger

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

const maxPriority = 10

var baseScore = map[model.TriggerLevel]int{
	model.Level1: 2,
	model.Level2: 5,
	model.Level3: 8,
}

// Observer receives trigger outcomes. internal/metrics implements it.
type Observer interface {
	ObserveTrigger(level model.TriggerLevel, priority int)
	ObserveCooldownBlock(level model.TriggerLevel)
}

type nopObserver struct{}

func (nopObserver) ObserveTrigger(model.TriggerLevel, int)  {}
func (nopObserver) ObserveCooldownBlock(model.TriggerLevel) {}

type Option func(*Evaluator)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Evaluator) { e.log = l }
}

// WithClock overrides time.Now for cooldown bookkeeping and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

func WithObserver(o Observer) Option {
	return func(e *Evaluator) { e.obs = o }
}

func WithRegimeFactors(f RegimeFactors) Option {
	return func(e *Evaluator) { e.factors = f }
}

// Evaluator decides whether a snapshot deserves escalation.
// It owns the live thresholds, the regime state and the counters; the
// cooldown ledger is injected so it can live in memory or in Redis.
type Evaluator struct {
	mu       sync.RWMutex
	baseline ThresholdSet
	current  ThresholdSet
	regime   model.RegimeHint
	factors  RegimeFactors

	statsMu sync.Mutex
	stats   model.TriggerStats

	ledger Ledger
	log    zerolog.Logger
	now    func() time.Time
	obs    Observer
}

func NewEvaluator(th ThresholdSet, ledger Ledger, opts ...Option) (*Evaluator, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, fmt.Errorf("evaluator: nil cooldown ledger")
	}
	if ledger.Window() < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNegativeCooldown, ledger.Window())
	}
	e := &Evaluator{
		baseline: th,
		current:  th,
		factors:  DefaultRegimeFactors(),
		ledger:   ledger,
		log:      zerolog.Nop(),
		now:      time.Now,
		obs:      nopObserver{},
	}
	for _, o := range opts {
		o(e)
	}
	if err := e.factors.ValidateFor(th); err != nil {
		return nil, err
	}
	return e, nil
}

// hit is one dimension that cleared its floor.
type hit struct {
	reason string
}

// match records the winning tier. checked counts every dimension the tier
// looked at, corroborators included, and is the confidence denominator.
type match struct {
	level    model.TriggerLevel
	required int
	checked  int
	hits     []hit
}

// Dimensions examined per tier, before corroborators.
const (
	level3Dims = 5 // price, volume, whale, liquidations, panic
	level2Dims = 5 // price, volume, whale, liquidations, technical
	level1Dims = 3 // price, volume, RSI
)

// Evaluate returns a signal for the highest qualifying tier, or nil when no
// tier matches or the symbol is cooling down. Only a missing symbol is an error.
func (e *Evaluator) Evaluate(snap model.MarketSnapshot) (*model.TriggerSignal, error) {
	symbol := strings.ToUpper(strings.TrimSpace(snap.Symbol))
	if symbol == "" {
		return nil, ErrMissingSymbol
	}

	e.mu.RLock()
	th := e.current
	e.mu.RUnlock()

	m := classify(&snap, th)
	if m.level == model.LevelNone {
		return nil, nil
	}

	now := e.now()
	acquired, remaining, err := e.ledger.TryAcquire(symbol, now)
	if err != nil {
		e.log.Error().Err(err).Str("symbol", symbol).Msg("cooldown ledger unavailable, trigger suppressed")
		return nil, nil
	}
	if !acquired {
		e.log.Debug().Str("symbol", symbol).Stringer("level", m.level).
			Dur("remaining", remaining).Msg("trigger blocked by cooldown")
		e.obs.ObserveCooldownBlock(m.level)
		return nil, nil
	}

	priority := baseScore[m.level] + len(m.hits) - m.required
	if priority > maxPriority {
		priority = maxPriority
	}
	reasons := make([]string, len(m.hits))
	for i, h := range m.hits {
		reasons[i] = h.reason
	}
	sig := &model.TriggerSignal{
		Symbol:        symbol,
		Level:         m.level,
		Priority:      priority,
		TriggerType:   triggerType(&snap, th),
		TriggerReason: reasons,
		Confidence:    math.Min(float64(len(m.hits))/float64(m.checked), 1),
		CreatedAt:     now,
	}

	e.statsMu.Lock()
	e.stats.Total++
	switch m.level {
	case model.Level1:
		e.stats.Level1++
	case model.Level2:
		e.stats.Level2++
	case model.Level3:
		e.stats.Level3++
	}
	e.statsMu.Unlock()

	e.obs.ObserveTrigger(sig.Level, sig.Priority)
	e.log.Info().Str("symbol", symbol).Stringer("level", sig.Level).
		Int("priority", sig.Priority).Str("type", sig.TriggerType).Msg("trigger fired")
	return sig, nil
}

// UpdateThresholds applies a regime hint and returns the resulting live thresholds.
// Adjustments are recomputed from the baseline, so hints do not compound.
// An empty field keeps the current value for that dimension.
func (e *Evaluator) UpdateThresholds(hint model.RegimeHint) ThresholdSet {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch hint.Trend {
	case "":
	case model.TrendBull, model.TrendBear, model.TrendNeutral:
		e.regime.Trend = hint.Trend
	default:
		e.log.Warn().Str("trend", hint.Trend).Msg("ignoring unrecognized trend hint")
	}
	switch hint.Volatility {
	case "":
	case model.VolatilityHigh, model.VolatilityNormal, model.VolatilityLow:
		e.regime.Volatility = hint.Volatility
	default:
		e.log.Warn().Str("volatility", hint.Volatility).Msg("ignoring unrecognized volatility hint")
	}

	e.current = adjust(e.baseline, e.regime, e.factors)
	e.log.Info().Str("trend", e.regime.Trend).Str("volatility", e.regime.Volatility).
		Float64("l1_price", e.current.Tiers[0].PriceChange).
		Float64("l2_price", e.current.Tiers[1].PriceChange).
		Msg("thresholds updated")
	return e.current
}

// Thresholds returns a copy of the live thresholds.
func (e *Evaluator) Thresholds() ThresholdSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Baseline returns the thresholds before any regime adjustment.
func (e *Evaluator) Baseline() ThresholdSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.baseline
}

func (e *Evaluator) Regime() model.RegimeHint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.regime
}

// Stats returns a copy of the counters plus the number of symbols still cooling.
func (e *Evaluator) Stats() model.TriggerStats {
	e.statsMu.Lock()
	s := e.stats
	e.statsMu.Unlock()

	n, err := e.ledger.Active(e.now())
	if err != nil {
		e.log.Error().Err(err).Msg("count active cooldowns")
	}
	s.ActiveCooldowns = n
	return s
}

// Prune drops expired cooldown entries and returns how many were removed.
func (e *Evaluator) Prune() (int, error) {
	return e.ledger.Prune(e.now())
}

func classify(s *model.MarketSnapshot, th ThresholdSet) match {
	price := math.Abs(s.PriceChange24h)
	rsiExt := math.Abs(s.RSIValue() - model.NeutralRSI)

	// LEVEL_3: price AND volume AND (whale OR liquidations OR panic).
	t3 := th.Tiers[2]
	if price >= t3.PriceChange && s.VolumeRatio >= t3.VolumeRatio &&
		(s.WhaleTransfer >= t3.WhaleTransfer || s.Liquidations >= t3.Liquidations || s.PanicSelling) {
		hits := []hit{priceHit(price, t3.PriceChange), volumeHit(s.VolumeRatio, t3.VolumeRatio)}
		if s.WhaleTransfer >= t3.WhaleTransfer {
			hits = append(hits, whaleHit(s.WhaleTransfer, t3.WhaleTransfer))
		}
		if s.Liquidations >= t3.Liquidations {
			hits = append(hits, liqHit(s.Liquidations, t3.Liquidations))
		}
		if s.PanicSelling {
			hits = append(hits, hit{"恐慌性抛售"})
		}
		hits, n := corroborate(hits, s, th, false)
		return match{level: model.Level3, required: 3, checked: level3Dims + n, hits: hits}
	}

	// LEVEL_2: any two of price, volume, whale, liquidations, technical signals.
	t2 := th.Tiers[1]
	var hits []hit
	if price >= t2.PriceChange {
		hits = append(hits, priceHit(price, t2.PriceChange))
	}
	if s.VolumeRatio >= t2.VolumeRatio {
		hits = append(hits, volumeHit(s.VolumeRatio, t2.VolumeRatio))
	}
	if s.WhaleTransfer >= t2.WhaleTransfer {
		hits = append(hits, whaleHit(s.WhaleTransfer, t2.WhaleTransfer))
	}
	if s.Liquidations >= t2.Liquidations {
		hits = append(hits, liqHit(s.Liquidations, t2.Liquidations))
	}
	if s.TechnicalSignalsCount >= t2.TechnicalSignals {
		hits = append(hits, hit{fmt.Sprintf("技术信号 %d ≥ %d (+%d)",
			s.TechnicalSignalsCount, t2.TechnicalSignals, s.TechnicalSignalsCount-t2.TechnicalSignals)})
	}
	if len(hits) >= 2 {
		hits, n := corroborate(hits, s, th, true)
		return match{level: model.Level2, required: 2, checked: level2Dims + n, hits: hits}
	}

	// LEVEL_1: price OR volume OR RSI extremity.
	t1 := th.Tiers[0]
	hits = hits[:0]
	if price >= t1.PriceChange {
		hits = append(hits, priceHit(price, t1.PriceChange))
	}
	if s.VolumeRatio >= t1.VolumeRatio {
		hits = append(hits, volumeHit(s.VolumeRatio, t1.VolumeRatio))
	}
	if rsiExt >= t1.RSIExtremity {
		hits = append(hits, hit{fmt.Sprintf("RSI %.1f 偏离 %.1f ≥ %.1f (+%.1f)",
			s.RSIValue(), rsiExt, t1.RSIExtremity, rsiExt-t1.RSIExtremity)})
	}
	if len(hits) >= 1 {
		hits, n := corroborate(hits, s, th, true)
		return match{level: model.Level1, required: 1, checked: level1Dims + n, hits: hits}
	}
	return match{level: model.LevelNone}
}

// corroborate appends the secondary signals that raise priority above a tier's
// minimum and reports how many it checked.
func corroborate(hits []hit, s *model.MarketSnapshot, th ThresholdSet, countPanic bool) ([]hit, int) {
	checked := 3
	if countPanic {
		checked++
	}
	if countPanic && s.PanicSelling {
		hits = append(hits, hit{"恐慌性抛售"})
	}
	if n := s.TopTraders(); n >= 2 {
		hits = append(hits, hit{fmt.Sprintf("顶级交易员同向操作 %d 人", n)})
	}
	if s.SocialMentionSpike >= th.SocialSpike {
		hits = append(hits, hit{fmt.Sprintf("社交热度 %.1fx ≥ %.1fx", s.SocialMentionSpike, th.SocialSpike)})
	}
	if s.NewsImportance >= th.NewsImportance {
		hits = append(hits, hit{fmt.Sprintf("新闻重要性 %d ≥ %d", s.NewsImportance, th.NewsImportance)})
	}
	return hits, checked
}

func triggerType(s *model.MarketSnapshot, th ThresholdSet) string {
	t2 := th.Tiers[1]
	switch {
	case s.NewsImportance >= th.NewsImportance:
		return model.TriggerNewsDriven
	case s.TopTraders() >= 2:
		return model.TriggerTraderDriven
	case s.WhaleTransfer > 0:
		return model.TriggerWhaleActivity
	case math.Abs(s.PriceChange24h) >= t2.PriceChange:
		return model.TriggerPriceMovement
	case s.VolumeRatio >= t2.VolumeRatio:
		return model.TriggerVolumeSpike
	case s.Liquidations > 0:
		return model.TriggerLiquidationCascade
	default:
		return model.TriggerTechnicalSignal
	}
}

func priceHit(v, floor float64) hit {
	return hit{fmt.Sprintf("24h涨跌 %.2f%% ≥ %.2f%% (+%.2f)", v, floor, v-floor)}
}

func volumeHit(v, floor float64) hit {
	return hit{fmt.Sprintf("成交量 %.2fx ≥ %.2fx (+%.2f)", v, floor, v-floor)}
}

func whaleHit(v, floor float64) hit {
	return hit{fmt.Sprintf("鲸鱼转账 %s ≥ %s", usd(v), usd(floor))}
}

func liqHit(v, floor float64) hit {
	return hit{fmt.Sprintf("爆仓金额 %s ≥ %s", usd(v), usd(floor))}
}

func usd(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
