// Package rule compiles declarative sequence-rule documents into the
// predicate trees and metadata the correlation engine evaluates.
package rule

import (
	"time"

	"github.com/huntseq/seqhound/internal/predicate"
)

// Severity levels for the optional rule severity/tags metadata. These are
// not read by the matching algorithm, only echoed on matches.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var validSeverities = map[string]bool{
	SeverityLow:      true,
	SeverityMedium:   true,
	SeverityHigh:     true,
	SeverityCritical: true,
}

// DefaultFormat is used when a rule document provides no output format.
const DefaultFormat = "[{timestamp}] [{name}] [{events}]"

// StepDoc is the declarative form of one sequence step.
type StepDoc struct {
	As    string `yaml:"as"`
	Where string `yaml:"where"`
}

// OutputDoc is the declarative form of a rule's match-formatting template.
type OutputDoc struct {
	TimestampRef string `yaml:"timestamp_ref,omitempty"`
	Format       string `yaml:"format,omitempty"`
}

// RuleDoc is the declarative sequence rule document as authored in YAML.
type RuleDoc struct {
	ID            string     `yaml:"id"`
	Name          string     `yaml:"name"`
	By            []string   `yaml:"by"`
	WithinSeconds int        `yaml:"within_seconds"`
	Sequence      []StepDoc  `yaml:"sequence"`
	Output        *OutputDoc `yaml:"output,omitempty"`
	Severity      string     `yaml:"severity,omitempty"`
	Tags          []string   `yaml:"tags,omitempty"`
}

// Step is one compiled, ordinal-indexed sequence step.
type Step struct {
	Alias     string
	Where     string
	Index     int
	Predicate predicate.Predicate
}

// OutputTemplate is the compiled match-formatting template.
type OutputTemplate struct {
	TimestampRef string
	Format       string
}

// CompiledRule is a rule ready for evaluation by the correlation engine.
type CompiledRule struct {
	ID       string
	Name     string
	By       []string
	Window   time.Duration
	Steps    []*Step
	Output   OutputTemplate
	Severity string
	Tags     []string
}
