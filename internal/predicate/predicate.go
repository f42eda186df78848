// Package predicate parses and compiles the sequence-step condition DSL
// ("PATH == LITERAL", "contains(PATH, STR)", "regex(PATH, STR)", ...) into
// callable, panic-safe predicates over an event's field map.
package predicate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/huntseq/seqhound/internal/extract"
)

// Op identifies which of the five surface forms a compiled expression is.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpIn
	OpContains
	OpRegex
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpIn:
		return "in"
	case OpContains:
		return "contains"
	case OpRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// Expr is the tagged-variant AST for one compiled step condition. Exactly one
// of Literal, Literals, or Pattern is populated, per Op.
type Expr struct {
	Op       Op
	Path     string
	Literal  any
	Literals []any
	Pattern  *regexp.Regexp
	Raw      string
}

var inListSniff = regexp.MustCompile(`\s+in\s*\[`)
var inListForm = regexp.MustCompile(`(?s)^(.+?)\s+in\s*\[(.*?)\]\s*$`)
var containsForm = regexp.MustCompile(`(?s)^contains\s*\(\s*(.+?)\s*,\s*(.+?)\s*\)\s*$`)
var regexForm = regexp.MustCompile(`(?s)^regex\s*\(\s*(.+?)\s*,\s*(.+?)\s*\)\s*$`)

// Parse compiles a where expression into its AST. The operator is recognized
// by a fixed lexical priority: contains( prefix, regex( prefix, " in [",
// "!=", "==". Anything else is a compile error.
func Parse(expression string) (*Expr, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, fmt.Errorf("predicate: empty or whitespace-only expression")
	}

	switch {
	case strings.HasPrefix(trimmed, "contains("):
		return parseContains(trimmed)
	case strings.HasPrefix(trimmed, "regex("):
		return parseRegex(trimmed)
	case inListSniff.MatchString(trimmed):
		return parseIn(trimmed)
	case strings.Contains(trimmed, "!="):
		return parseComparison(trimmed, OpNeq, "!=")
	case strings.Contains(trimmed, "=="):
		return parseComparison(trimmed, OpEq, "==")
	default:
		return nil, fmt.Errorf("predicate: unsupported expression syntax: %q", trimmed)
	}
}

func parseComparison(expr string, op Op, token string) (*Expr, error) {
	parts := strings.SplitN(expr, token, 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("predicate: invalid %s expression: %q", token, expr)
	}

	path := strings.TrimSpace(parts[0])
	valueStr := strings.TrimSpace(parts[1])
	if path == "" || valueStr == "" {
		return nil, fmt.Errorf("predicate: invalid %s expression: %q", token, expr)
	}

	return &Expr{Op: op, Path: path, Literal: parseLiteral(valueStr), Raw: expr}, nil
}

func parseIn(expr string) (*Expr, error) {
	m := inListForm.FindStringSubmatch(expr)
	if m == nil {
		return nil, fmt.Errorf("predicate: invalid 'in' expression: %q", expr)
	}

	path := strings.TrimSpace(m[1])
	if path == "" {
		return nil, fmt.Errorf("predicate: invalid 'in' expression: %q", expr)
	}

	var literals []any
	valuesStr := strings.TrimSpace(m[2])
	if valuesStr != "" {
		for _, v := range strings.Split(valuesStr, ",") {
			v = strings.TrimSpace(v)
			if v != "" {
				literals = append(literals, parseLiteral(v))
			}
		}
	}

	return &Expr{Op: OpIn, Path: path, Literals: literals, Raw: expr}, nil
}

func parseContains(expr string) (*Expr, error) {
	m := containsForm.FindStringSubmatch(expr)
	if m == nil {
		return nil, fmt.Errorf("predicate: invalid contains expression: %q", expr)
	}

	path := strings.TrimSpace(m[1])
	lit := parseLiteral(strings.TrimSpace(m[2]))
	needle, ok := lit.(string)
	if !ok {
		return nil, fmt.Errorf("predicate: contains search value must be a string literal: %q", expr)
	}

	return &Expr{Op: OpContains, Path: path, Literal: needle, Raw: expr}, nil
}

func parseRegex(expr string) (*Expr, error) {
	m := regexForm.FindStringSubmatch(expr)
	if m == nil {
		return nil, fmt.Errorf("predicate: invalid regex expression: %q", expr)
	}

	path := strings.TrimSpace(m[1])
	lit := parseLiteral(strings.TrimSpace(m[2]))
	pattern, ok := lit.(string)
	if !ok {
		return nil, fmt.Errorf("predicate: regex pattern must be a string literal: %q", expr)
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("predicate: invalid regex pattern %q: %w", pattern, err)
	}

	return &Expr{Op: OpRegex, Path: path, Pattern: compiled, Raw: expr}, nil
}

// parseLiteral turns a literal token into its Go value: a quoted string, an
// integer/decimal (both represented as float64, matching the float64 numbers
// encoding/json decodes events into, so rule literals compare cleanly
// against live event data), a lowercase boolean, or null/none (nil). Anything
// else falls back to a bareword string.
func parseLiteral(s string) any {
	s = strings.TrimSpace(s)

	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}

	lower := strings.ToLower(s)
	if lower == "true" || lower == "false" {
		return lower == "true"
	}
	if lower == "null" || lower == "none" {
		return nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	return s
}

// absent is a unique sentinel distinguishing "path not present" from an
// explicit null field value (which decodes to Go nil).
type absentT struct{}

var absent = &absentT{}

// Eval evaluates the compiled expression against a record. It is pure and
// total but may panic on exotic inputs (e.g. a Stringer that panics); callers
// that need the "evaluation errors map to false" contract should go through
// Compile, not Eval, directly.
func (e *Expr) Eval(record map[string]any) bool {
	switch e.Op {
	case OpEq:
		v := extract.Extract(record, e.Path, absent)
		if v == absent {
			return false
		}
		return valuesEqual(v, e.Literal)
	case OpNeq:
		v := extract.Extract(record, e.Path, absent)
		if v == absent {
			return true
		}
		return !valuesEqual(v, e.Literal)
	case OpIn:
		v := extract.Extract(record, e.Path, absent)
		if v == absent {
			return false
		}
		for _, lit := range e.Literals {
			if valuesEqual(v, lit) {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := extract.Text(record, e.Path)
		if !ok {
			return false
		}
		return strings.Contains(s, e.Literal.(string))
	case OpRegex:
		s, ok := extract.Text(record, e.Path)
		if !ok {
			return false
		}
		return e.Pattern.MatchString(s)
	default:
		return false
	}
}

// valuesEqual compares an extracted value against a literal with no
// cross-kind coercion (5 == "5" is false) but treats all numeric Go
// representations (int, int64, float64, ...) as one kind, since JSON-decoded
// event data and hand-built test fixtures mix them freely.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return a == b
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Predicate is a compiled, panic-safe condition over an event's field map.
type Predicate func(record map[string]any) bool

// Compile parses expression and returns a Predicate that traps any runtime
// panic during evaluation and reports false, per the "PredicateRuntime"
// error-handling policy: evaluation never fails, it only ever returns a
// boolean.
func Compile(expression string) (Predicate, error) {
	expr, err := Parse(expression)
	if err != nil {
		return nil, err
	}

	return func(record map[string]any) (result bool) {
		defer func() {
			if recover() != nil {
				result = false
			}
		}()
		return expr.Eval(record)
	}, nil
}
