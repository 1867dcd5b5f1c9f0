package decision

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

// num matches 67500, 67,500 and 67500.25.
const num = `\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`

// price matches an optionally signed, optionally currency-prefixed number
// with an optional percent suffix; a signed percent is relative to the reference price.
const price = `([+\-]?)\s*[$＄]?\s*(` + num + `)\s*([%％]?)`

// rule extracts one field from the raw text into d. Rules are independent of
// each other and of label order in the text.
type rule interface {
	name() string
	apply(text string, ref float64, d *model.ParsedDecision)
}

type actionRule struct {
	labeled *regexp.Regexp
	bracket *regexp.Regexp
	bare    *regexp.Regexp
}

func (actionRule) name() string { return "action" }

// apply prefers a labeled marker. Without one, the first bracketed action
// token anywhere wins, then an unbracketed labeled word.
func (r actionRule) apply(text string, _ float64, d *model.ParsedDecision) {
	if m := r.labeled.FindStringSubmatch(text); m != nil {
		if a, ok := LookupAction(m[1]); ok {
			d.Action = a
			return
		}
	}
	for _, m := range r.bracket.FindAllStringSubmatch(text, -1) {
		if a, ok := LookupAction(m[1]); ok {
			d.Action = a
			return
		}
	}
	if m := r.bare.FindStringSubmatch(text); m != nil {
		if a, ok := LookupAction(m[1]); ok {
			d.Action = a
		}
	}
}

// markerRule tries its label patterns in order, so a specific label anywhere
// in the text beats a looser one that happens to appear earlier.
type markerRule struct {
	field    string
	res      []*regexp.Regexp
	keywords [][2]string // fallback {phrase, marker} pairs, used when no label matches
	set      func(d *model.ParsedDecision, marker string) bool
}

func (r markerRule) name() string { return r.field }

func (r markerRule) apply(text string, _ float64, d *model.ParsedDecision) {
	for _, re := range r.res {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if r.set(d, m[1]) {
				return
			}
		}
	}
	for _, kw := range r.keywords {
		if strings.Contains(text, kw[0]) && r.set(d, kw[1]) {
			return
		}
	}
}

// priceRule sets a single price field from the first usable match.
type priceRule struct {
	field string
	re    *regexp.Regexp
	set   func(d *model.ParsedDecision, v float64)
}

func (r priceRule) name() string { return r.field }

func (r priceRule) apply(text string, ref float64, d *model.ParsedDecision) {
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		if v, ok := resolvePrice(m[1], m[2], m[3], ref); ok {
			r.set(d, v)
			return
		}
	}
}

var priceItem = regexp.MustCompile(price)

// targetRule collects every target label, and every item of a listed target,
// in first-seen order without duplicates.
type targetRule struct {
	re *regexp.Regexp
}

func (targetRule) name() string { return "targets" }

func (r targetRule) apply(text string, ref float64, d *model.ParsedDecision) {
	seen := make(map[float64]struct{}, len(d.Targets))
	for _, t := range d.Targets {
		seen[t] = struct{}{}
	}
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		for _, item := range priceItem.FindAllStringSubmatch(m[1], -1) {
			v, ok := resolvePrice(item[1], item[2], item[3], ref)
			if !ok {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			d.Targets = append(d.Targets, v)
		}
	}
}

// numberRule sets a plain numeric field from the first match of any pattern.
type numberRule struct {
	field string
	res   []*regexp.Regexp
	set   func(d *model.ParsedDecision, v float64)
}

func (r numberRule) name() string { return r.field }

func (r numberRule) apply(text string, _ float64, d *model.ParsedDecision) {
	for _, re := range r.res {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := parseNumber(m[1]); err == nil {
				r.set(d, v)
				return
			}
		}
	}
}

type textRule struct {
	field string
	re    *regexp.Regexp
	set   func(d *model.ParsedDecision, s string)
}

func (r textRule) name() string { return r.field }

func (r textRule) apply(text string, _ float64, d *model.ParsedDecision) {
	if m := r.re.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			r.set(d, s)
		}
	}
}

var bullet = regexp.MustCompile(`^\s*(?:[-*•·]|\d+[.、)])\s*(.+?)\s*$`)

// listRule collects the bullet lines that follow a section header. Text
// after the header on the same line is split on commas.
type listRule struct {
	field  string
	header *regexp.Regexp
	set    func(d *model.ParsedDecision, items []string)
}

func (r listRule) name() string { return r.field }

func (r listRule) apply(text string, _ float64, d *model.ParsedDecision) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		m := r.header.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		items := splitInline(m[1])
		for _, next := range lines[i+1:] {
			if strings.TrimSpace(next) == "" {
				if len(items) > 0 {
					break
				}
				continue
			}
			b := bullet.FindStringSubmatch(next)
			if b == nil {
				break
			}
			items = append(items, b[1])
		}
		if len(items) > 0 {
			r.set(d, items)
			return
		}
	}
}

var inlineSep = regexp.MustCompile(`[,，;；、]`)

func splitInline(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "*")
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range inlineSep.Split(s, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// resolvePrice turns a matched price into an absolute positive value.
// Signed percentages are offsets from ref; unsigned ones are ambiguous and dropped.
func resolvePrice(sign, digits, pct string, ref float64) (float64, bool) {
	v, err := parseNumber(digits)
	if err != nil {
		return 0, false
	}
	if pct != "" {
		if sign == "" || ref <= 0 {
			return 0, false
		}
		if sign == "-" {
			v = -v
		}
		v = roundPrice(ref * (1 + v/100))
	} else if sign == "-" {
		return 0, false
	}
	if v <= 0 {
		return 0, false
	}
	return v, true
}

func ptr(v float64) *float64 { return &v }

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

const (
	sep     = `\s*[:：]?\s*`
	colon   = `\s*[:：]\s*`
	bracket = `[【\[]\s*([^】\]\n]+?)\s*[】\]]`
	header  = `^\s*[#*]*\s*(?:\d+[.、]\s*)?(?:%s)[*\s]*[:：]?[*\s]*(.*)$`
)

func defaultRules() []rule {
	return []rule{
		actionRule{
			labeled: regexp.MustCompile(`(?i)(?:决策|操作|方向|建议|action|decision)` + sep + bracket),
			bracket: regexp.MustCompile(bracket),
			bare:    regexp.MustCompile(`(?i)(?:决策|操作|方向|action|decision)` + colon + `([\p{Han}A-Za-z]+)`),
		},
		markerRule{
			field: "urgency",
			res: []*regexp.Regexp{
				regexp.MustCompile(`(?i)(?:紧急程度|紧急度|执行时机|执行|urgency)[ \t]*[:：][ \t]*[【\[]?[ \t]*([^】\]\n,，;；]+)`),
			},
			set: func(d *model.ParsedDecision, marker string) bool {
				u, ok := LookupUrgency(marker)
				if ok {
					d.Urgency = u
				}
				return ok
			},
		},
		markerRule{
			field: "risk_level",
			res: []*regexp.Regexp{
				regexp.MustCompile(`(?i)(?:风险等级|风险级别|risk[ \t_]*level)[ \t]*[:：][ \t]*[【\[]?[ \t]*([^】\]\n,，;；]+)`),
				// A bare label only counts at line start; 主要风险： opens the risks list.
				regexp.MustCompile(`(?im)^[ \t*#-]*(?:风险|risk)[ \t]*[:：][ \t]*[【\[]?[ \t]*([^】\]\n,，;；]+)`),
			},
			keywords: [][2]string{{"高风险", "高"}, {"低风险", "低"}},
			set: func(d *model.ParsedDecision, marker string) bool {
				r, ok := LookupRisk(marker)
				if ok {
					d.RiskLevel = r
				}
				return ok
			},
		},
		priceRule{
			field: "entry_price",
			re:    regexp.MustCompile(`(?i)(?:入场价[格位]?|入场|开仓价|entry(?:[ \t_]*price)?)` + sep + price),
			set:   func(d *model.ParsedDecision, v float64) { d.EntryPrice = ptr(v) },
		},
		priceRule{
			field: "stop_loss",
			re:    regexp.MustCompile(`(?i)(?:止损价?[位格]?|stop[ \t_-]*loss|\bSL\b)` + sep + price),
			set:   func(d *model.ParsedDecision, v float64) { d.StopLoss = ptr(v) },
		},
		targetRule{
			re: regexp.MustCompile(`(?i)(?:目标价?[位格]?\s*\d*|止盈\s*\d*|take[ \t_-]*profit\s*\d*|targets?\s*\d*|\bTP\d*|\bT\d)` + colon +
				`((?:[+\-]?\s*[$＄]?\s*(?:` + num + `)\s*[%％]?)(?:\s*[,，/、]\s*[+\-]?\s*[$＄]?\s*(?:` + num + `)\s*[%％]?)*)`),
		},
		numberRule{
			field: "position_size",
			res:   []*regexp.Regexp{regexp.MustCompile(`(?i)(?:建议仓位|仓位|建仓|头寸|position(?:[ \t_]*size)?)` + sep + `(` + num + `)\s*[%％]`)},
			set:   func(d *model.ParsedDecision, v float64) { d.PositionSize = ptr(v) },
		},
		numberRule{
			field: "leverage",
			res: []*regexp.Regexp{
				regexp.MustCompile(`(?i)(?:杠杆倍数|杠杆|leverage)` + sep + `(` + num + `)\s*[xX×倍]?`),
				regexp.MustCompile(`(` + num + `)\s*(?:[xX×]|倍)\s*杠杆`),
			},
			set: func(d *model.ParsedDecision, v float64) { d.Leverage = ptr(v) },
		},
		numberRule{
			field: "confidence",
			res: []*regexp.Regexp{
				regexp.MustCompile(`(?i)(?:置信度|信心指数|信心|confidence)` + sep + `(` + num + `)(?:\s*/\s*10)?`),
				regexp.MustCompile(`(` + num + `)\s*/\s*10\b`),
			},
			set: func(d *model.ParsedDecision, v float64) { d.Confidence = ptr(clamp(v, 0, 10)) },
		},
		textRule{
			field: "time_frame",
			re:    regexp.MustCompile(`(?i)(?:预期持仓时间|持仓时间|持仓周期|时间周期|时间框架|time[ \t_-]*frame|holding[ \t_]*period)` + colon + `([^\n,，;；]+)`),
			set:   func(d *model.ParsedDecision, s string) { d.TimeFrame = s },
		},
		listRule{
			field:  "key_factors",
			header: regexp.MustCompile(`(?i)` + strings.Replace(header, "%s", `关键因素|主要因素|核心因素|决策依据|key[ \t_]*factors?`, 1)),
			set:    func(d *model.ParsedDecision, items []string) { d.KeyFactors = items },
		},
		listRule{
			field:  "risks",
			header: regexp.MustCompile(`(?i)` + strings.Replace(header, "%s", `风险提示|主要风险|风险因素|风险点|注意事项|risks|risk[ \t_]*factors|warnings?`, 1)),
			set:    func(d *model.ParsedDecision, items []string) { d.Risks = items },
		},
	}
}
