package trigger

import (
	"errors"
	"fmt"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

var (
	ErrInvalidThresholds = errors.New("invalid thresholds")
	ErrNegativeCooldown  = errors.New("cooldown must not be negative")
	ErrMissingSymbol     = errors.New("snapshot has no symbol")
)

// Tier holds the floors a severity level is measured against.
type Tier struct {
	PriceChange      float64 `json:"price_change" yaml:"price_change"`   // |percent|
	VolumeRatio      float64 `json:"volume_ratio" yaml:"volume_ratio"`   // x baseline
	RSIExtremity     float64 `json:"rsi_extremity" yaml:"rsi_extremity"` // distance from 50
	WhaleTransfer    float64 `json:"whale_transfer" yaml:"whale_transfer"`
	Liquidations     float64 `json:"liquidations" yaml:"liquidations"`
	TechnicalSignals int     `json:"technical_signals" yaml:"technical_signals"`
}

// ThresholdSet is the full trigger configuration. Tiers[0] is LEVEL_1.
type ThresholdSet struct {
	Tiers          [3]Tier `json:"tiers"`
	SocialSpike    float64 `json:"social_spike"`
	NewsImportance int     `json:"news_importance"`
}

// DefaultThresholds returns the stock floors.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		Tiers: [3]Tier{
			{PriceChange: 1.5, VolumeRatio: 2.0, RSIExtremity: 20, WhaleTransfer: 1_000_000, Liquidations: 10_000_000, TechnicalSignals: 2},
			{PriceChange: 3.0, VolumeRatio: 3.0, RSIExtremity: 25, WhaleTransfer: 10_000_000, Liquidations: 50_000_000, TechnicalSignals: 3},
			{PriceChange: 10.0, VolumeRatio: 5.0, RSIExtremity: 35, WhaleTransfer: 50_000_000, Liquidations: 100_000_000, TechnicalSignals: 5},
		},
		SocialSpike:    3.0,
		NewsImportance: 7,
	}
}

// Tier returns the floors for a level. LevelNone maps to LEVEL_1.
func (t ThresholdSet) Tier(l model.TriggerLevel) Tier {
	switch l {
	case model.Level2:
		return t.Tiers[1]
	case model.Level3:
		return t.Tiers[2]
	default:
		return t.Tiers[0]
	}
}

// Validate enforces positive floors and tier-3 >= tier-2 >= tier-1 on every dimension.
func (t ThresholdSet) Validate() error {
	for i, tier := range t.Tiers {
		lvl := i + 1
		if tier.PriceChange <= 0 || tier.VolumeRatio <= 0 || tier.WhaleTransfer <= 0 ||
			tier.Liquidations <= 0 || tier.TechnicalSignals <= 0 {
			return fmt.Errorf("%w: level %d floors must be positive", ErrInvalidThresholds, lvl)
		}
		if tier.RSIExtremity <= 0 || tier.RSIExtremity > 50 {
			return fmt.Errorf("%w: level %d rsi_extremity must be in (0, 50]", ErrInvalidThresholds, lvl)
		}
		if i == 0 {
			continue
		}
		lo := t.Tiers[i-1]
		switch {
		case tier.PriceChange < lo.PriceChange:
			return fmt.Errorf("%w: level %d price_change below level %d", ErrInvalidThresholds, lvl, lvl-1)
		case tier.VolumeRatio < lo.VolumeRatio:
			return fmt.Errorf("%w: level %d volume_ratio below level %d", ErrInvalidThresholds, lvl, lvl-1)
		case tier.RSIExtremity < lo.RSIExtremity:
			return fmt.Errorf("%w: level %d rsi_extremity below level %d", ErrInvalidThresholds, lvl, lvl-1)
		case tier.WhaleTransfer < lo.WhaleTransfer:
			return fmt.Errorf("%w: level %d whale_transfer below level %d", ErrInvalidThresholds, lvl, lvl-1)
		case tier.Liquidations < lo.Liquidations:
			return fmt.Errorf("%w: level %d liquidations below level %d", ErrInvalidThresholds, lvl, lvl-1)
		case tier.TechnicalSignals < lo.TechnicalSignals:
			return fmt.Errorf("%w: level %d technical_signals below level %d", ErrInvalidThresholds, lvl, lvl-1)
		}
	}
	if t.SocialSpike <= 0 {
		return fmt.Errorf("%w: social_spike must be positive", ErrInvalidThresholds)
	}
	if t.NewsImportance < 1 || t.NewsImportance > 10 {
		return fmt.Errorf("%w: news_importance must be in [1, 10]", ErrInvalidThresholds)
	}
	return nil
}

// RegimeFactors scale price-change floors for a regime hint.
// Bull and Bear multiply the tier-2 floor; HighVolatility multiplies the tier-1 floor.
type RegimeFactors struct {
	Bull           float64 `json:"bull"`
	Bear           float64 `json:"bear"`
	HighVolatility float64 `json:"high_volatility"`
}

func DefaultRegimeFactors() RegimeFactors {
	return RegimeFactors{Bull: 1.25, Bear: 1.5, HighVolatility: 0.75}
}

// Validate requires 1 < Bull < Bear and 0 < HighVolatility < 1.
func (f RegimeFactors) Validate() error {
	if f.Bull <= 1 {
		return fmt.Errorf("%w: bull factor must be > 1", ErrInvalidThresholds)
	}
	if f.Bear <= f.Bull {
		return fmt.Errorf("%w: bear factor must exceed bull factor", ErrInvalidThresholds)
	}
	if f.HighVolatility <= 0 || f.HighVolatility >= 1 {
		return fmt.Errorf("%w: high volatility factor must be in (0, 1)", ErrInvalidThresholds)
	}
	return nil
}

// ValidateFor checks the factors on their own and against th: the bear-scaled
// tier-2 price floor must stay under the tier-3 floor, otherwise the clamp in
// adjust would make bull and bear indistinguishable.
func (f RegimeFactors) ValidateFor(th ThresholdSet) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if th.Tiers[1].PriceChange*f.Bear >= th.Tiers[2].PriceChange {
		return fmt.Errorf("%w: bear factor %.2f lifts tier-2 price floor %.2f to tier-3 floor %.2f",
			ErrInvalidThresholds, f.Bear, th.Tiers[1].PriceChange, th.Tiers[2].PriceChange)
	}
	return nil
}

// adjust derives the live thresholds from a baseline and the current regime.
// Adjusted floors are clamped so tier ordering still holds.
func adjust(base ThresholdSet, regime model.RegimeHint, f RegimeFactors) ThresholdSet {
	out := base
	switch regime.Trend {
	case model.TrendBull:
		out.Tiers[1].PriceChange = min(base.Tiers[1].PriceChange*f.Bull, base.Tiers[2].PriceChange)
	case model.TrendBear:
		out.Tiers[1].PriceChange = min(base.Tiers[1].PriceChange*f.Bear, base.Tiers[2].PriceChange)
	}
	if regime.Volatility == model.VolatilityHigh {
		out.Tiers[0].PriceChange = base.Tiers[0].PriceChange * f.HighVolatility
	}
	return out
}
