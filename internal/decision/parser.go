package decision

import "github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"

// Parser extracts a best-effort structured decision from free text.
// It holds only compiled rules and is safe for concurrent use.
type Parser struct {
	rules []rule
}

func NewParser() *Parser {
	return &Parser{rules: defaultRules()}
}

// Parse never fails. Text with no recognizable markers yields an
// UNRECOGNIZED decision with every optional field absent.
// ref resolves signed percentage prices such as "止损：-3%".
func (p *Parser) Parse(text, symbol string, ref float64) model.ParsedDecision {
	d := model.NewParsedDecision(symbol)
	for _, r := range p.rules {
		r.apply(text, ref, &d)
	}
	return d
}

func (p *Parser) rule(name string) rule {
	for _, r := range p.rules {
		if r.name() == name {
			return r
		}
	}
	return nil
}
