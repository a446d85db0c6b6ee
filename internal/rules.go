package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Rule publishes an event to every Emit topic when When evaluates to true.
type Rule struct {
	When    string   `yaml:"when"`
	Emit    EmitList `yaml:"emit"`
	Drivers []string `yaml:"drivers"`
}

// EmitList accepts either a single topic or a list of topics.
type EmitList []string

func (e *EmitList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var topic string
		if err := node.Decode(&topic); err != nil {
			return err
		}
		*e = EmitList{topic}
		return nil
	case yaml.SequenceNode:
		var topics []string
		if err := node.Decode(&topics); err != nil {
			return err
		}
		*e = topics
		return nil
	default:
		return fmt.Errorf("emit must be a string or a list of strings")
	}
}

// RulesConfig represents the rule-specific parts of the configuration.
type RulesConfig struct {
	Rules  []Rule
	Strict bool
	Logger *zerolog.Logger
}

// RuleMatch is one topic produced by a matching rule.
type RuleMatch struct {
	Topic   string
	Drivers []string
}

type compiledRule struct {
	emit    []string
	drivers []string
	expr    *govaluate.EvaluableExpression
	paths   map[string]string
}

type RuleEngine struct {
	rules  []compiledRule
	strict bool
	logger zerolog.Logger
}

var errMissingParameter = errors.New("missing parameter")

var ruleFunctions = map[string]govaluate.ExpressionFunction{
	"contains": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(args))
		}
		switch haystack := args[0].(type) {
		case string:
			needle, _ := args[1].(string)
			return strings.Contains(haystack, needle), nil
		case []interface{}:
			for _, item := range haystack {
				if reflect.DeepEqual(item, args[1]) {
					return true, nil
				}
			}
			return false, nil
		}
		return false, nil
	},
	"like": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("like expects 2 arguments, got %d", len(args))
		}
		value, _ := args[0].(string)
		pattern, _ := args[1].(string)
		return likePattern(pattern).MatchString(value), nil
	},
}

func NewRuleEngine(cfg RulesConfig) (*RuleEngine, error) {
	engine := &RuleEngine{strict: cfg.Strict, logger: zerolog.Nop()}
	if cfg.Logger != nil {
		engine.logger = *cfg.Logger
	}
	for i, rule := range cfg.Rules {
		expr, paths, err := compileExpression(rule.When)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		engine.rules = append(engine.rules, compiledRule{
			emit:    rule.Emit,
			drivers: rule.Drivers,
			expr:    expr,
			paths:   paths,
		})
	}
	return engine, nil
}

// Evaluate returns one match per emitted topic of every rule that holds.
func (r *RuleEngine) Evaluate(event Event) []RuleMatch {
	if r == nil || len(r.rules) == 0 {
		return nil
	}
	params := r.parameters(event)

	matches := make([]RuleMatch, 0, 1)
	for _, rule := range r.rules {
		ok, err := evaluate(rule, params)
		if err != nil {
			r.logger.Debug().Err(err).Str("when", rule.expr.String()).Msg("rule evaluation failed")
			continue
		}
		if !ok {
			continue
		}
		for _, topic := range rule.emit {
			matches = append(matches, RuleMatch{Topic: topic, Drivers: rule.drivers})
		}
	}
	return matches
}

// Filter reports whether any of a list of expressions holds for an event.
type Filter struct {
	engine *RuleEngine
}

// NewFilter compiles expressions; an empty list never matches.
func NewFilter(expressions []string, logger *zerolog.Logger) (*Filter, error) {
	rules := make([]Rule, 0, len(expressions))
	for _, when := range expressions {
		rules = append(rules, Rule{When: when, Emit: EmitList{when}})
	}
	engine, err := NewRuleEngine(RulesConfig{Rules: rules, Logger: logger})
	if err != nil {
		return nil, err
	}
	return &Filter{engine: engine}, nil
}

// Match returns the first expression that holds.
func (f *Filter) Match(event Event) (string, bool) {
	if f == nil {
		return "", false
	}
	matches := f.engine.Evaluate(event)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Topic, true
}

func evaluate(rule compiledRule, params eventParameters) (bool, error) {
	result, err := rule.expr.Eval(params.with(rule.paths))
	if err != nil {
		return false, err
	}
	ok, _ := result.(bool)
	return ok, nil
}

type eventParameters struct {
	name   string
	object interface{}
	flat   map[string]interface{}
	strict bool
	paths  map[string]string
}

func (r *RuleEngine) parameters(event Event) eventParameters {
	object := event.RawObject
	if object == nil && len(event.RawPayload) > 0 {
		_ = json.Unmarshal(event.RawPayload, &object)
	}
	flat := event.Data
	if flat == nil {
		if m, ok := object.(map[string]interface{}); ok {
			flat = Flatten(m)
		}
	}
	return eventParameters{name: event.Name, object: object, flat: flat, strict: r.strict}
}

func (p eventParameters) with(paths map[string]string) eventParameters {
	p.paths = paths
	return p
}

func (p eventParameters) Get(name string) (interface{}, error) {
	if path, ok := p.paths[name]; ok {
		value, err := jsonpath.Get(path, p.object)
		if err != nil {
			return p.missing(name)
		}
		return value, nil
	}
	if value, ok := p.flat[name]; ok {
		return value, nil
	}
	if name == "event" {
		return p.name, nil
	}
	return p.missing(name)
}

func (p eventParameters) missing(name string) (interface{}, error) {
	if p.strict {
		return nil, fmt.Errorf("%w: %s", errMissingParameter, name)
	}
	return nil, nil
}

var pathPattern = regexp.MustCompile(`\$(?:\.[A-Za-z_]\w*|\[\d+\])+|[A-Za-z_]\w*(?:\.[A-Za-z_]\w*|\[\d+\])+`)

// compileExpression swaps JSONPath and dotted references outside string
// literals for synthetic variables so govaluate can parse the rest.
func compileExpression(when string) (*govaluate.EvaluableExpression, map[string]string, error) {
	paths := make(map[string]string)
	var out strings.Builder
	segments := splitQuoted(when)
	for _, segment := range segments {
		if segment.quoted {
			out.WriteString(segment.text)
			continue
		}
		out.WriteString(pathPattern.ReplaceAllStringFunc(segment.text, func(ref string) string {
			name := fmt.Sprintf("path__%d", len(paths))
			if !strings.HasPrefix(ref, "$") {
				ref = "$." + ref
			}
			paths[name] = ref
			return name
		}))
	}
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(out.String(), ruleFunctions)
	if err != nil {
		return nil, nil, err
	}
	return expr, paths, nil
}

type exprSegment struct {
	text   string
	quoted bool
}

func splitQuoted(s string) []exprSegment {
	var segments []exprSegment
	start := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote == 0 && (c == '"' || c == '\''):
			if i > start {
				segments = append(segments, exprSegment{text: s[start:i]})
			}
			quote = c
			start = i
		case quote != 0 && c == '\\':
			i++
		case quote != 0 && c == quote:
			segments = append(segments, exprSegment{text: s[start : i+1], quoted: true})
			quote = 0
			start = i + 1
		}
	}
	if start < len(s) {
		segments = append(segments, exprSegment{text: s[start:], quoted: quote != 0})
	}
	return segments
}

// likePattern translates a SQL LIKE pattern into an anchored regexp.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
