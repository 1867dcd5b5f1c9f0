package decision

import (
	"reflect"
	"testing"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

func fp(v float64) *float64 { return &v }

func eqPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestParse_SingleLine(t *testing.T) {
	d := NewParser().Parse("决策：【做多】 入场价：$67500 目标1：$68500 止损：$66000 仓位：15% 置信度：8/10", "BTC", 67400)

	if d.Symbol != "BTC" {
		t.Errorf("symbol = %q", d.Symbol)
	}
	if d.Action != model.ActionLong {
		t.Errorf("action = %s", d.Action)
	}
	if !eqPtr(d.EntryPrice, fp(67500)) {
		t.Errorf("entry = %v", d.EntryPrice)
	}
	if !reflect.DeepEqual(d.Targets, []float64{68500}) {
		t.Errorf("targets = %v", d.Targets)
	}
	if !eqPtr(d.StopLoss, fp(66000)) {
		t.Errorf("stop = %v", d.StopLoss)
	}
	if !eqPtr(d.PositionSize, fp(15)) {
		t.Errorf("position = %v", d.PositionSize)
	}
	if !eqPtr(d.Confidence, fp(8)) {
		t.Errorf("confidence = %v", d.Confidence)
	}
	if d.Leverage != nil {
		t.Errorf("leverage should be absent, got %v", *d.Leverage)
	}
	if d.Urgency != model.UrgencyNormal || d.RiskLevel != model.RiskMedium {
		t.Errorf("defaults = %s/%s", d.Urgency, d.RiskLevel)
	}
}

func TestParse_MultiLineChinese(t *testing.T) {
	text := `决策：【做空】
紧急度：【立即】
风险等级：【高】
入场价格：$67,800
止损位：$69,000
目标1：$66,500
目标2：$65,000
目标3：$66,500
仓位：20%
杠杆：5x
置信度：7.5/10
预期持仓时间：1-3天

关键因素：
- ETF资金连续流出
- 鲸鱼转入交易所
* 资金费率转负

风险提示：
• 空头回补引发轧空
• 监管消息`

	d := NewParser().Parse(text, "BTC", 67750)
	want := model.ParsedDecision{
		Symbol:       "BTC",
		Action:       model.ActionShort,
		EntryPrice:   fp(67800),
		Targets:      []float64{66500, 65000},
		StopLoss:     fp(69000),
		PositionSize: fp(20),
		Leverage:     fp(5),
		Confidence:   fp(7.5),
		Urgency:      model.UrgencyImmediate,
		RiskLevel:    model.RiskHigh,
		TimeFrame:    "1-3天",
		KeyFactors:   []string{"ETF资金连续流出", "鲸鱼转入交易所", "资金费率转负"},
		Risks:        []string{"空头回补引发轧空", "监管消息"},
	}
	if !reflect.DeepEqual(d, want) {
		t.Errorf("parsed:\n%+v\nwant:\n%+v", d, want)
	}
}

func TestParse_English(t *testing.T) {
	text := `Decision: [SHORT]
Entry: 3,450.5
Stop Loss: 3,520
Targets: 3,380, 3,300 / 3,200
Position Size: 10%
Leverage: 3x
Confidence: 6/10
Urgency: soon
Risk: low
Timeframe: 4h
Key Factors:
1. Funding flipped positive
2) OI rising
Risks:
- Short squeeze`

	d := NewParser().Parse(text, "ETH", 3440)
	if d.Action != model.ActionShort {
		t.Errorf("action = %s", d.Action)
	}
	if !eqPtr(d.EntryPrice, fp(3450.5)) || !eqPtr(d.StopLoss, fp(3520)) {
		t.Errorf("entry/stop = %v/%v", d.EntryPrice, d.StopLoss)
	}
	if !reflect.DeepEqual(d.Targets, []float64{3380, 3300, 3200}) {
		t.Errorf("targets = %v", d.Targets)
	}
	if !eqPtr(d.PositionSize, fp(10)) || !eqPtr(d.Leverage, fp(3)) || !eqPtr(d.Confidence, fp(6)) {
		t.Errorf("position/leverage/confidence = %v/%v/%v", d.PositionSize, d.Leverage, d.Confidence)
	}
	if d.Urgency != model.UrgencySoon || d.RiskLevel != model.RiskLow {
		t.Errorf("urgency/risk = %s/%s", d.Urgency, d.RiskLevel)
	}
	if d.TimeFrame != "4h" {
		t.Errorf("time frame = %q", d.TimeFrame)
	}
	if !reflect.DeepEqual(d.KeyFactors, []string{"Funding flipped positive", "OI rising"}) {
		t.Errorf("key factors = %q", d.KeyFactors)
	}
	if !reflect.DeepEqual(d.Risks, []string{"Short squeeze"}) {
		t.Errorf("risks = %q", d.Risks)
	}
}

func TestParse_Garbage(t *testing.T) {
	for _, text := range []string{"", "market looks interesting today", "【】[] ：：%%"} {
		d := NewParser().Parse(text, "SOL", 150)
		want := model.NewParsedDecision("SOL")
		if !reflect.DeepEqual(d, want) {
			t.Errorf("Parse(%q) = %+v, want empty decision", text, d)
		}
	}
}

func TestParse_NegatedAction(t *testing.T) {
	for _, text := range []string{"决策：【不建议做多】", "决策：【暂不做空】", "Decision: [do not buy]"} {
		if got := NewParser().Parse(text, "BTC", 67000).Action; got != model.ActionUnrecognized {
			t.Errorf("Parse(%q).Action = %s, want UNRECOGNIZED", text, got)
		}
	}
}
