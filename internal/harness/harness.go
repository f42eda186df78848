// Package harness replays a declarative rule against a batch of event
// records for interactive rule testing, without requiring a running engine
// or persisted rule store.
package harness

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huntseq/seqhound/internal/correlation"
	"github.com/huntseq/seqhound/internal/event"
	"github.com/huntseq/seqhound/internal/rule"
)

// Result is the outcome of replaying one rule against one event batch.
type Result struct {
	Rule            *rule.CompiledRule
	EventsProcessed int
	Matches         []*correlation.Match
}

// EventParseError reports that a single event record could not be parsed or
// timestamped, naming its position in the input stream.
type EventParseError struct {
	Index int
	Line  int // 1-based source line; 0 when the input wasn't line-oriented
	Err   error
}

func (e *EventParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("event %d (line %d): %v", e.Index, e.Line, e.Err)
	}
	return fmt.Sprintf("event %d: %v", e.Index, e.Err)
}

func (e *EventParseError) Unwrap() error { return e.Err }

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Run compiles doc and replays records, in order, through a fresh
// single-rule engine, returning every match it emits.
//
// Compilation errors are returned as-is so callers can type-assert
// *rule.RuleShapeError or *rule.PredicateError to cite the offending field
// or step alias. A record whose "timestamp" field is present but
// unparseable aborts the batch with an *EventParseError naming its index,
// rather than silently defaulting to ingestion time, which can mask a
// broken upstream feeder.
func Run(doc *rule.RuleDoc, records []map[string]any) (*Result, error) {
	engine := correlation.New(1)
	compiled, err := engine.LoadRule(doc)
	if err != nil {
		return nil, err
	}

	events := make([]*event.Event, len(records))
	for i, rec := range records {
		ts, err := recordTimestamp(rec)
		if err != nil {
			return nil, &EventParseError{Index: i, Err: err}
		}
		events[i] = event.New(rec, ts, nil)
	}

	matches := engine.ProcessEvents(events)

	return &Result{Rule: compiled, EventsProcessed: len(events), Matches: matches}, nil
}

// RunJSONL parses jsonlText and runs Run over the decoded records.
func RunJSONL(doc *rule.RuleDoc, jsonlText string) (*Result, error) {
	records, err := ParseJSONL(jsonlText)
	if err != nil {
		return nil, err
	}
	return Run(doc, records)
}

// ParseJSONL decodes newline-delimited JSON objects, tolerating blank lines
// and lines whose first non-whitespace character is '#'. Each surviving
// line must decode to a JSON object; anything else yields an
// *EventParseError naming its 1-based source line.
func ParseJSONL(jsonlText string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(jsonlText)
	if trimmed == "" {
		return nil, nil
	}

	var records []map[string]any
	for i, line := range strings.Split(jsonlText, "\n") {
		lineNum := i + 1
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, &EventParseError{Index: len(records), Line: lineNum, Err: err}
		}
		records = append(records, rec)
	}

	return records, nil
}

func recordTimestamp(rec map[string]any) (*time.Time, error) {
	raw, ok := rec["timestamp"]
	if !ok {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("timestamp field must be a string, got %T", raw)
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("timestamp %q does not match any supported ISO-8601 layout", s)
}
