package rule

import (
	"fmt"
	"time"

	"github.com/huntseq/seqhound/internal/predicate"
)

// Compile turns a declarative RuleDoc into a CompiledRule ready for the
// correlation engine, compiling every step's where-expression and validating
// rule shape up front so load-time failures name the offending field.
func Compile(doc *RuleDoc) (*CompiledRule, error) {
	if doc.ID == "" {
		return nil, errShape("id", "is required")
	}
	if doc.Name == "" {
		return nil, errShape("name", "is required")
	}
	if doc.WithinSeconds <= 0 {
		return nil, errShape("within_seconds", "must be a positive integer")
	}
	if len(doc.Sequence) == 0 {
		return nil, errShape("sequence", "must be a non-empty ordered list")
	}
	if doc.Severity != "" && !validSeverities[doc.Severity] {
		return nil, errShape("severity", fmt.Sprintf("invalid severity %q", doc.Severity))
	}

	for i, field := range doc.By {
		if field == "" {
			return nil, errShape(fmt.Sprintf("by[%d]", i), "must be a non-empty dotted path")
		}
	}

	seenAlias := make(map[string]bool, len(doc.Sequence))
	steps := make([]*Step, 0, len(doc.Sequence))
	for i, s := range doc.Sequence {
		if s.As == "" {
			return nil, errShape(fmt.Sprintf("sequence[%d].as", i), "is required")
		}
		if seenAlias[s.As] {
			return nil, errShape(fmt.Sprintf("sequence[%d].as", i), fmt.Sprintf("alias %q is not unique within this rule", s.As))
		}
		seenAlias[s.As] = true

		if s.Where == "" {
			return nil, errShape(fmt.Sprintf("sequence[%d].where", i), "is required")
		}

		pred, err := predicate.Compile(s.Where)
		if err != nil {
			return nil, &PredicateError{Alias: s.As, Err: err}
		}

		steps = append(steps, &Step{Alias: s.As, Where: s.Where, Index: i, Predicate: pred})
	}

	by := make([]string, len(doc.By))
	copy(by, doc.By)

	output := OutputTemplate{Format: DefaultFormat}
	if doc.Output != nil {
		if doc.Output.Format != "" {
			output.Format = doc.Output.Format
		}
		output.TimestampRef = doc.Output.TimestampRef
	}

	var tags []string
	if len(doc.Tags) > 0 {
		tags = make([]string, len(doc.Tags))
		copy(tags, doc.Tags)
	}

	return &CompiledRule{
		ID:       doc.ID,
		Name:     doc.Name,
		By:       by,
		Window:   time.Duration(doc.WithinSeconds) * time.Second,
		Steps:    steps,
		Output:   output,
		Severity: doc.Severity,
		Tags:     tags,
	}, nil
}

// CompileAll compiles every document, stopping at the first error and naming
// the offending rule ID (falling back to its index when the ID itself is the
// field in error).
func CompileAll(docs []*RuleDoc) ([]*CompiledRule, error) {
	compiled := make([]*CompiledRule, 0, len(docs))
	for i, d := range docs {
		c, err := Compile(d)
		if err != nil {
			name := d.ID
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("rule %s: %w", name, err)
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}
