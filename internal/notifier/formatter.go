package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/trigger"
)

var levelIcon = map[model.TriggerLevel]string{
	model.Level1: "🟢",
	model.Level2: "🟠",
	model.Level3: "🔴",
}

// FormatTriggerAlert formats a trigger signal into a Telegram message.
func FormatTriggerAlert(sig *model.TriggerSignal) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s <b>%s 异动触发</b> | %s\n\n", levelIcon[sig.Level], html.EscapeString(sig.Symbol), sig.Level))
	b.WriteString(fmt.Sprintf("类型: %s\n", sig.TriggerType))
	b.WriteString(fmt.Sprintf("优先级: %d/10 | 置信度: %.0f%%\n", sig.Priority, sig.Confidence*100))
	b.WriteString("\n📌 <b>触发原因:</b>\n")
	for _, r := range sig.TriggerReason {
		b.WriteString(fmt.Sprintf("  • %s\n", html.EscapeString(r)))
	}
	b.WriteString(fmt.Sprintf("\n时间: %s", sig.CreatedAt.Format("2006-01-02 15:04:05")))
	return b.String()
}

// FormatStats formats trigger counters for display.
func FormatStats(s model.TriggerStats, regime model.RegimeHint) string {
	var b strings.Builder
	b.WriteString("📊 <b>触发统计</b>\n\n")
	b.WriteString(fmt.Sprintf("总计: %s\n", humanize.Comma(int64(s.Total))))
	b.WriteString(fmt.Sprintf("LEVEL_1: %d | LEVEL_2: %d | LEVEL_3: %d\n", s.Level1, s.Level2, s.Level3))
	b.WriteString(fmt.Sprintf("冷却中: %d\n", s.ActiveCooldowns))
	b.WriteString(fmt.Sprintf("市场状态: %s\n", regimeText(regime)))
	b.WriteString(fmt.Sprintf("更新时间: %s", time.Now().Format("2006-01-02 15:04")))
	return b.String()
}

// FormatThresholds formats the live trigger floors.
func FormatThresholds(th trigger.ThresholdSet, regime model.RegimeHint) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚙️ <b>触发阈值</b> | %s\n\n", regimeText(regime)))
	for i, t := range th.Tiers {
		b.WriteString(fmt.Sprintf("<b>LEVEL_%d</b>\n", i+1))
		b.WriteString(fmt.Sprintf("  涨跌幅 ≥ %.2f%% | 量比 ≥ %.1fx | RSI偏离 ≥ %.0f\n", t.PriceChange, t.VolumeRatio, t.RSIExtremity))
		b.WriteString(fmt.Sprintf("  鲸鱼 ≥ $%s | 爆仓 ≥ $%s | 技术信号 ≥ %d\n",
			humanize.Comma(int64(t.WhaleTransfer)), humanize.Comma(int64(t.Liquidations)), t.TechnicalSignals))
	}
	b.WriteString(fmt.Sprintf("\n社交热度 ≥ %.1fx | 新闻重要性 ≥ %d", th.SocialSpike, th.NewsImportance))
	return b.String()
}

func regimeText(r model.RegimeHint) string {
	trend, vol := r.Trend, r.Volatility
	if trend == "" {
		trend = model.TrendNeutral
	}
	if vol == "" {
		vol = model.VolatilityNormal
	}
	return fmt.Sprintf("趋势 %s / 波动 %s", trend, vol)
}
