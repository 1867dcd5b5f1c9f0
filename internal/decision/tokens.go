package decision

import (
	"strings"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

// token maps one normalized marker to its variant. Tables are scanned in
// order, so longer or more specific markers come first.
type token[T any] struct {
	key string
	val T
}

var actionTokens = []token[model.Action]{
	{"观望", model.ActionUnrecognized},
	{"空仓", model.ActionUnrecognized},
	{"多空", model.ActionUnrecognized},
	{"持有", model.ActionUnrecognized},
	{"平仓", model.ActionUnrecognized},
	{"hold", model.ActionUnrecognized},
	{"wait", model.ActionUnrecognized},
	{"做多", model.ActionLong},
	{"开多", model.ActionLong},
	{"买入", model.ActionLong},
	{"看多", model.ActionLong},
	{"long", model.ActionLong},
	{"buy", model.ActionLong},
	{"多", model.ActionLong},
	{"做空", model.ActionShort},
	{"开空", model.ActionShort},
	{"卖出", model.ActionShort},
	{"看空", model.ActionShort},
	{"short", model.ActionShort},
	{"sell", model.ActionShort},
	{"空", model.ActionShort},
}

var urgencyTokens = []token[model.Urgency]{
	{"立即执行", model.UrgencyImmediate},
	{"立即", model.UrgencyImmediate},
	{"马上", model.UrgencyImmediate},
	{"紧急", model.UrgencyImmediate},
	{"immediate", model.UrgencyImmediate},
	{"urgent", model.UrgencyImmediate},
	{"30分钟内", model.UrgencySoon},
	{"1小时内", model.UrgencySoon},
	{"尽快", model.UrgencySoon},
	{"soon", model.UrgencySoon},
	{"今日内", model.UrgencyNormal},
	{"今日", model.UrgencyNormal},
	{"观察", model.UrgencyNormal},
	{"正常", model.UrgencyNormal},
	{"常规", model.UrgencyNormal},
	{"today", model.UrgencyNormal},
	{"normal", model.UrgencyNormal},
	{"watch", model.UrgencyNormal},
}

var riskTokens = []token[model.RiskLevel]{
	{"极高", model.RiskHigh},
	{"extreme", model.RiskHigh},
	{"high", model.RiskHigh},
	{"高", model.RiskHigh},
	{"中等", model.RiskMedium},
	{"medium", model.RiskMedium},
	{"中", model.RiskMedium},
	{"low", model.RiskLow},
	{"低", model.RiskLow},
}

// lookup resolves a marker: an exact match wins, otherwise the first table
// key contained in the marker.
func lookup[T any](table []token[T], marker string) (T, bool) {
	m := normalize(marker)
	for _, t := range table {
		if t.key == m {
			return t.val, true
		}
	}
	if m != "" {
		for _, t := range table {
			if strings.Contains(m, t.key) {
				return t.val, true
			}
		}
	}
	var zero T
	return zero, false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "")
}

// negations void a directional token that follows them inside a marker,
// as in 不建议做多 or "do not buy".
var negations = []string{"不", "别", "勿", "避免", "not", "n't", "no", "never", "avoid"}

// LookupAction maps an action marker to LONG or SHORT; anything else is UNRECOGNIZED.
// ok is false when the marker is not an action token at all, as opposed to an
// explicit non-directional one such as 观望 or a negated direction.
func LookupAction(marker string) (a model.Action, ok bool) {
	m := normalize(marker)
	if m == "" {
		return model.ActionUnrecognized, false
	}
	for _, t := range actionTokens {
		if t.key == m {
			return t.val, true
		}
	}
	for _, t := range actionTokens {
		i := strings.Index(m, t.key)
		if i < 0 {
			continue
		}
		if t.val.Directional() && negated(m[:i]) {
			return model.ActionUnrecognized, true
		}
		return t.val, true
	}
	return model.ActionUnrecognized, false
}

func negated(prefix string) bool {
	for _, n := range negations {
		if strings.Contains(prefix, n) {
			return true
		}
	}
	return false
}

func LookupUrgency(marker string) (model.Urgency, bool) {
	return lookup(urgencyTokens, marker)
}

func LookupRisk(marker string) (model.RiskLevel, bool) {
	return lookup(riskTokens, marker)
}
