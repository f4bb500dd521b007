package fields

import "sync"

// Engine runs a RuleSet over OCR text. It is safe for concurrent use.
type Engine struct {
	rules *RuleSet
}

// NewEngine builds an engine for rs, falling back to the embedded rules when rs is nil.
func NewEngine(rs *RuleSet) *Engine {
	if rs == nil {
		rs = DefaultRules()
	}
	return &Engine{rules: rs}
}

// Extract never fails: fields the rules cannot find are left nil.
func (e *Engine) Extract(text string) Result {
	var res Result
	text = NormalizeText(text)
	if text == "" {
		return res
	}

	prior := make(map[Name]Match, len(e.rules.Chains))
	for _, chain := range e.rules.Chains {
		m, ok := chain.evaluate(text, prior)
		if !ok {
			continue
		}
		if !res.Fields.set(chain.Field, m.Value) {
			continue
		}
		prior[chain.Field] = m
		res.Matches = append(res.Matches, m)
	}
	return res
}

var defaultEngine = sync.OnceValue(func() *Engine { return NewEngine(DefaultRules()) })

// Extract runs the embedded rule set over text.
func Extract(text string) Fields {
	return defaultEngine().Extract(text).Fields
}
