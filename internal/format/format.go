// Package format renders a completed correlation match into a human-readable
// line via a placeholder template.
package format

import (
	"strings"

	"github.com/huntseq/seqhound/internal/correlation"
)

// DefaultTemplate is used when a rule declares no output format.
const DefaultTemplate = "[{timestamp}] [{name}] [{events}]"

// timeLayout is the fixed UTC rendering for {timestamp}.
const timeLayout = "2006-01-02 15:04:05"

// Render substitutes m's fields into template. Unknown placeholders are left
// literal; an empty template falls back to DefaultTemplate.
func Render(template string, m *correlation.Match) string {
	if template == "" {
		template = DefaultTemplate
	}

	replacer := strings.NewReplacer(
		"{timestamp}", m.Timestamp.UTC().Format(timeLayout),
		"{name}", m.RuleName,
		"{events}", strings.Join(m.MatchedEventIDs, ","),
		"{correlation_key}", m.CorrelationKey,
		"{rule_id}", m.RuleID,
	)
	return replacer.Replace(template)
}
