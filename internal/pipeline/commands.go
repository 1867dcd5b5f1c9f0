package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/notifier"
)

const helpText = `<b>可用命令</b>
/stats - 触发统计
/thresholds - 当前阈值
/regime &lt;bull|bear|neutral&gt; [high|normal|low] - 更新市场状态
/decide &lt;symbol&gt; &lt;price&gt; 换行后附决策文本 - 解析决策`

// HandleCommand answers one chat command. It satisfies notifier.CommandHandler.
func (p *Pipeline) HandleCommand(ctx context.Context, text string) string {
	head, body, _ := strings.Cut(strings.TrimSpace(text), "\n")
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return ""
	}
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch cmd {
	case "/stats":
		return notifier.FormatStats(p.eval.Stats(), p.eval.Regime())
	case "/thresholds":
		return notifier.FormatThresholds(p.eval.Thresholds(), p.eval.Regime())
	case "/regime":
		if len(args) == 0 {
			return "用法: /regime &lt;bull|bear|neutral&gt; [high|normal|low]"
		}
		hint := model.RegimeHint{Trend: strings.ToLower(args[0])}
		if len(args) > 1 {
			hint.Volatility = strings.ToLower(args[1])
		}
		th := p.eval.UpdateThresholds(hint)
		return notifier.FormatThresholds(th, p.eval.Regime())
	case "/decide":
		if len(args) < 2 || strings.TrimSpace(body) == "" {
			return "用法: /decide &lt;symbol&gt; &lt;price&gt;\n&lt;决策文本&gt;"
		}
		ref, err := strconv.ParseFloat(strings.ReplaceAll(args[1], ",", ""), 64)
		if err != nil || ref < 0 {
			return "价格无效: " + args[1]
		}
		return p.decide(ctx, body, args[0], ref).Message
	default:
		return helpText
	}
}
