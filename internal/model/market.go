package model

import "time"

// NeutralRSI is used when a snapshot carries no RSI reading.
const NeutralRSI = 50.0

// MarketSnapshot is one poll cycle of market metrics for a single symbol.
// Absent magnitudes decode to zero; an absent RSI stays nil and reads as NeutralRSI.
type MarketSnapshot struct {
	Symbol                string    `json:"symbol"`
	PriceChange24h        float64   `json:"price_change_24h"`     // signed percent
	VolumeRatio           float64   `json:"volume_ratio"`         // multiple of baseline volume
	RSI                   *float64  `json:"rsi,omitempty"`        // 0 ~ 100
	WhaleTransfer         float64   `json:"whale_transfer"`       // USD
	Liquidations          float64   `json:"liquidations"`         // USD
	TopTradersAction      []string  `json:"top_traders_action"`   // actor identifiers
	SocialMentionSpike    float64   `json:"social_mention_spike"` // multiplier
	NewsImportance        int       `json:"news_importance"`      // 0 ~ 10
	TechnicalSignalsCount int       `json:"technical_signals_count"`
	PanicSelling          bool      `json:"panic_selling"`
	ObservedAt            time.Time `json:"observed_at"`
}

// RSIValue returns the RSI reading, or NeutralRSI when absent.
func (s *MarketSnapshot) RSIValue() float64 {
	if s.RSI == nil {
		return NeutralRSI
	}
	return *s.RSI
}

// TopTraders counts distinct non-empty actor identifiers.
func (s *MarketSnapshot) TopTraders() int {
	seen := make(map[string]struct{}, len(s.TopTradersAction))
	for _, a := range s.TopTradersAction {
		if a == "" {
			continue
		}
		seen[a] = struct{}{}
	}
	return len(seen)
}

// Trend and volatility tokens accepted in a RegimeHint.
const (
	TrendBull    = "bull"
	TrendBear    = "bear"
	TrendNeutral = "neutral"

	VolatilityHigh   = "high"
	VolatilityNormal = "normal"
	VolatilityLow    = "low"
)

// RegimeHint is an external classification of the current market regime.
// Empty fields leave the corresponding adjustment untouched.
type RegimeHint struct {
	Trend      string `json:"trend,omitempty"`
	Volatility string `json:"volatility,omitempty"`
}
