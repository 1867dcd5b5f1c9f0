package presenter

import (
	"fmt"
	"html"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

var actionLabel = map[model.Action]string{
	model.ActionLong:         "📈 做多",
	model.ActionShort:        "📉 做空",
	model.ActionUnrecognized: "❓ 无法识别",
}

var urgencyLabel = map[model.Urgency]string{
	model.UrgencyImmediate: "🔴 立即",
	model.UrgencySoon:      "🟡 尽快",
	model.UrgencyNormal:    "🟢 常规",
}

var riskLabel = map[model.RiskLevel]string{
	model.RiskLow:    "低",
	model.RiskMedium: "中",
	model.RiskHigh:   "高",
}

// Message renders a decision as Telegram HTML.
func Message(e model.EnhancedDecision, v model.ValidationResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s <b>%s</b>\n\n", actionLabel[e.Action], html.EscapeString(e.Symbol)))

	if e.EntryPrice != nil {
		b.WriteString(fmt.Sprintf("入场价: %s\n", usd(*e.EntryPrice)))
	}
	if e.StopLoss != nil {
		b.WriteString(fmt.Sprintf("止损价: %s\n", usd(*e.StopLoss)))
	}
	if len(e.Targets) > 0 {
		parts := make([]string, len(e.Targets))
		for i, t := range e.Targets {
			parts[i] = usd(t)
		}
		b.WriteString(fmt.Sprintf("目标价: %s\n", strings.Join(parts, " → ")))
	}
	if e.PositionSize != nil {
		b.WriteString(fmt.Sprintf("仓位: %s%%", humanize.CommafWithDigits(*e.PositionSize, 2)))
		if e.Leverage != nil {
			b.WriteString(fmt.Sprintf(" | 杠杆: %sx", humanize.CommafWithDigits(*e.Leverage, 2)))
		}
		b.WriteString("\n")
	}
	if e.Confidence != nil {
		b.WriteString(fmt.Sprintf("置信度: %.1f/10\n", *e.Confidence))
	}
	b.WriteString(fmt.Sprintf("紧急度: %s | 风险: %s\n", urgencyLabel[e.Urgency], riskLabel[e.RiskLevel]))
	if e.TimeFrame != "" {
		b.WriteString(fmt.Sprintf("持仓周期: %s\n", html.EscapeString(e.TimeFrame)))
	}

	writeList(&b, "🔑 <b>关键因素:</b>", e.KeyFactors)
	writeList(&b, "⚠️ <b>风险提示:</b>", e.Risks)

	if len(v.Issues) > 0 {
		if v.IsValid {
			writeList(&b, "ℹ️ <b>提示:</b>", v.Issues)
		} else {
			writeList(&b, "🚫 <b>校验未通过:</b>", v.Issues)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + title + "\n")
	for _, it := range items {
		b.WriteString("  • " + html.EscapeString(it) + "\n")
	}
}

func usd(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 2)
}
