package fields

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

//go:embed rules.schema.json
var rulesSchemaJSON []byte

var rulesSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.schema.json", bytes.NewReader(rulesSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("rules.schema.json")
})

// Pick selects which occurrence of a pattern a rule prefers.
type Pick string

const (
	PickFirst Pick = "first"
	PickLast  Pick = "last"
)

// Near restricts a rule to a window of text around another field's match.
type Near struct {
	Field  Name
	Window int
}

// Rule is one compiled entry of a field's fallback chain.
type Rule struct {
	Name      string
	Pattern   *regexp.Regexp
	Group     int
	Pick      Pick
	Normalize Normalizer
	Reject    map[string]struct{}
	Near      *Near
}

// Chain is the priority-ordered list of rules for one field.
type Chain struct {
	Field Name
	Rules []Rule
}

// RuleSet is the full extraction configuration. Chains run in order, so a
// rule may only look near a field whose chain comes earlier.
type RuleSet struct {
	Chains []Chain
}

type ruleFile struct {
	Fields []chainSpec `yaml:"fields"`
}

type chainSpec struct {
	Field Name       `yaml:"field"`
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name      string    `yaml:"name"`
	Pattern   string    `yaml:"pattern"`
	Group     *int      `yaml:"group"`
	Pick      Pick      `yaml:"pick"`
	Normalize string    `yaml:"normalize"`
	Reject    []string  `yaml:"reject"`
	Near      *nearSpec `yaml:"near"`
}

type nearSpec struct {
	Field  Name `yaml:"field"`
	Window int  `yaml:"window"`
}

// DefaultRules returns the embedded rule set. It panics if the embedded file is
// invalid, which the package tests guard against.
func DefaultRules() *RuleSet {
	rs, err := LoadRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("fields: embedded rules: %v", err))
	}
	return rs
}

// LoadRulesFile reads and compiles a YAML rule file.
func LoadRulesFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rs, err := LoadRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rs, nil
}

// LoadRules validates a YAML rule document against the rule schema and
// compiles it.
func LoadRules(data []byte) (*RuleSet, error) {
	if err := validateRuleDocument(data); err != nil {
		return nil, err
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(file.Fields) == 0 {
		return nil, fmt.Errorf("no fields defined")
	}

	seen := make(map[Name]bool, len(file.Fields))
	rs := &RuleSet{Chains: make([]Chain, 0, len(file.Fields))}
	for _, cs := range file.Fields {
		if _, ok := knownNames[cs.Field]; !ok {
			return nil, fmt.Errorf("unknown field %q", cs.Field)
		}
		if seen[cs.Field] {
			return nil, fmt.Errorf("field %q defined twice", cs.Field)
		}
		chain := Chain{Field: cs.Field}
		for i, spec := range cs.Rules {
			rule, err := compileRule(spec, seen)
			if err != nil {
				return nil, fmt.Errorf("field %s rule %d: %w", cs.Field, i, err)
			}
			chain.Rules = append(chain.Rules, rule)
		}
		seen[cs.Field] = true
		rs.Chains = append(rs.Chains, chain)
	}
	return rs, nil
}

// validateRuleDocument checks the document shape before any regex is compiled,
// so typos in keys are reported instead of silently ignored.
func validateRuleDocument(data []byte) error {
	schema, err := rulesSchema()
	if err != nil {
		return fmt.Errorf("rules schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}
	// Round-trip through JSON so the validator sees JSON value types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules do not match schema: %w", err)
	}
	return nil
}

func compileRule(spec ruleSpec, defined map[Name]bool) (Rule, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Rule{}, fmt.Errorf("name is required")
	}
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("%s: compile pattern: %w", name, err)
	}

	group := 1
	if spec.Group != nil {
		group = *spec.Group
	}
	if group < 0 || group > re.NumSubexp() {
		return Rule{}, fmt.Errorf("%s: group %d out of range (pattern has %d)", name, group, re.NumSubexp())
	}

	pick := spec.Pick
	switch pick {
	case "":
		pick = PickFirst
	case PickFirst, PickLast:
	default:
		return Rule{}, fmt.Errorf("%s: unknown pick %q", name, pick)
	}

	normName := spec.Normalize
	if normName == "" {
		normName = "trim"
	}
	normalize, ok := normalizers[normName]
	if !ok {
		return Rule{}, fmt.Errorf("%s: unknown normalizer %q", name, normName)
	}

	rule := Rule{
		Name:      name,
		Pattern:   re,
		Group:     group,
		Pick:      pick,
		Normalize: normalize,
	}
	if len(spec.Reject) > 0 {
		rule.Reject = make(map[string]struct{}, len(spec.Reject))
		for _, v := range spec.Reject {
			rule.Reject[foldKey(v)] = struct{}{}
		}
	}
	if spec.Near != nil {
		if !defined[spec.Near.Field] {
			return Rule{}, fmt.Errorf("%s: near field %q must be defined earlier", name, spec.Near.Field)
		}
		if spec.Near.Window <= 0 {
			return Rule{}, fmt.Errorf("%s: near window must be positive", name)
		}
		rule.Near = &Near{Field: spec.Near.Field, Window: spec.Near.Window}
	}
	return rule, nil
}

func (r Rule) rejects(value string) bool {
	if len(r.Reject) == 0 {
		return false
	}
	_, ok := r.Reject[foldKey(value)]
	return ok
}

// apply runs the rule against text. prior holds the matches of chains that
// already ran; accept vetoes values the target field cannot hold.
func (r Rule) apply(text string, prior map[Name]Match, accept func(string) bool) (Match, bool) {
	scope, base := text, 0
	if r.Near != nil {
		anchor, ok := prior[r.Near.Field]
		if !ok {
			return Match{}, false
		}
		lo := max(0, anchor.Start-r.Near.Window)
		hi := min(len(text), anchor.End+r.Near.Window)
		scope, base = text[lo:hi], lo
	}

	locs := r.Pattern.FindAllStringSubmatchIndex(scope, -1)
	for i := range locs {
		loc := locs[i]
		if r.Pick == PickLast {
			loc = locs[len(locs)-1-i]
		}
		start, end := loc[2*r.Group], loc[2*r.Group+1]
		if start < 0 {
			continue
		}
		value, ok := r.Normalize(scope[start:end])
		if !ok || value == "" || r.rejects(value) || !accept(value) {
			continue
		}
		return Match{Rule: r.Name, Value: value, Start: base + start, End: base + end}, true
	}
	return Match{}, false
}

// evaluate tries each rule in priority order; the first usable value wins.
func (c Chain) evaluate(text string, prior map[Name]Match) (Match, bool) {
	accept := func(v string) bool { return accepts(c.Field, v) }
	for _, r := range c.Rules {
		if m, ok := r.apply(text, prior, accept); ok {
			m.Field = c.Field
			return m, true
		}
	}
	return Match{}, false
}
