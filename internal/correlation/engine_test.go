package correlation

import (
	"testing"
	"time"

	"github.com/huntseq/seqhound/internal/event"
	"github.com/huntseq/seqhound/internal/rule"
)

func mustLoad(t *testing.T, e *Engine, doc *rule.RuleDoc) *rule.CompiledRule {
	t.Helper()
	c, err := e.LoadRule(doc)
	if err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}
	return c
}

func ts(hh, mm, ss int) time.Time {
	return time.Date(2024, 1, 1, hh, mm, ss, 0, time.UTC)
}

func evAt(id string, t time.Time, fields map[string]any) *event.Event {
	tt := t
	return event.New(fields, &tt, &id)
}

func loginFileAccessRule() *rule.RuleDoc {
	return &rule.RuleDoc{
		ID:            "seq-1",
		Name:          "login then file access",
		By:            []string{"agent.id"},
		WithinSeconds: 60,
		Sequence: []rule.StepDoc{
			{As: "A", Where: `event.type == "login"`},
			{As: "B", Where: `event.type == "file_access"`},
		},
	}
}

func agentEvent(agentID, eventType string) map[string]any {
	return map[string]any{
		"agent": map[string]any{"id": agentID},
		"event": map[string]any{"type": eventType},
	}
}

// S1 — Basic A->B within window.
func TestS1BasicSequenceWithinWindow(t *testing.T) {
	e := New(4)
	mustLoad(t, e, loginFileAccessRule())

	var matches []*Match
	matches = append(matches, e.ProcessEvent(evAt("e1", ts(10, 0, 0), agentEvent("a", "login")))...)
	matches = append(matches, e.ProcessEvent(evAt("e2", ts(10, 0, 10), agentEvent("a", "file_access")))...)

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if m.CorrelationKey != "a" {
		t.Errorf("expected key 'a', got %q", m.CorrelationKey)
	}
	if len(m.MatchedEventIDs) != 2 || m.MatchedEventIDs[0] != "e1" || m.MatchedEventIDs[1] != "e2" {
		t.Errorf("unexpected matched ids: %v", m.MatchedEventIDs)
	}
	if !m.Timestamp.Equal(ts(10, 0, 10)) {
		t.Errorf("expected match timestamp 10:00:10, got %v", m.Timestamp)
	}
}

// S2 — Window exceeded restart.
func TestS2WindowExceededRestart(t *testing.T) {
	e := New(4)
	mustLoad(t, e, loginFileAccessRule())

	var matches []*Match
	matches = append(matches, e.ProcessEvent(evAt("e1", ts(10, 0, 0), agentEvent("a", "login")))...)
	matches = append(matches, e.ProcessEvent(evAt("e2", ts(10, 2, 0), agentEvent("a", "file_access")))...)

	if len(matches) != 0 {
		t.Fatalf("expected 0 matches after window exceeded, got %d", len(matches))
	}
}

// S3 — Per-key isolation.
func TestS3PerKeyIsolation(t *testing.T) {
	e := New(4)
	mustLoad(t, e, loginFileAccessRule())

	var matches []*Match
	matches = append(matches, e.ProcessEvent(evAt("e1", ts(10, 0, 0), agentEvent("a", "login")))...)
	matches = append(matches, e.ProcessEvent(evAt("e2", ts(10, 0, 5), agentEvent("b", "login")))...)
	matches = append(matches, e.ProcessEvent(evAt("e3", ts(10, 0, 10), agentEvent("a", "file_access")))...)
	matches = append(matches, e.ProcessEvent(evAt("e4", ts(10, 0, 15), agentEvent("b", "file_access")))...)

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	byKey := map[string][]string{}
	for _, m := range matches {
		byKey[m.CorrelationKey] = m.MatchedEventIDs
	}
	if byKey["a"][0] != "e1" || byKey["a"][1] != "e3" {
		t.Errorf("unexpected key a match: %v", byKey["a"])
	}
	if byKey["b"][0] != "e2" || byKey["b"][1] != "e4" {
		t.Errorf("unexpected key b match: %v", byKey["b"])
	}
}

// S4 — Out-of-order events.
func TestS4OutOfOrderEvents(t *testing.T) {
	e := New(4)
	mustLoad(t, e, &rule.RuleDoc{
		ID:            "seq-seq",
		Name:          "three step seq",
		By:            []string{"agent.id"},
		WithinSeconds: 60,
		Sequence: []rule.StepDoc{
			{As: "s1", Where: "event.seq == 1"},
			{As: "s2", Where: "event.seq == 2"},
			{As: "s3", Where: "event.seq == 3"},
		},
	})

	seqEvent := func(n float64) map[string]any {
		return map[string]any{"agent": map[string]any{"id": "a"}, "event": map[string]any{"seq": n}}
	}

	var matches []*Match
	matches = append(matches, e.ProcessEvent(evAt("e2", ts(10, 0, 0), seqEvent(2)))...)
	matches = append(matches, e.ProcessEvent(evAt("e1", ts(10, 0, 1), seqEvent(1)))...)
	matches = append(matches, e.ProcessEvent(evAt("e3", ts(10, 0, 2), seqEvent(3)))...)

	if len(matches) != 0 {
		t.Fatalf("expected 0 matches for out-of-order arrival, got %d", len(matches))
	}
}

// S5 — Multiple matches per key.
func TestS5MultipleMatchesPerKey(t *testing.T) {
	e := New(4)
	mustLoad(t, e, loginFileAccessRule())

	var matches []*Match
	matches = append(matches, e.ProcessEvent(evAt("a1", ts(10, 0, 0), agentEvent("a", "login")))...)
	matches = append(matches, e.ProcessEvent(evAt("b1", ts(10, 0, 5), agentEvent("a", "file_access")))...)
	matches = append(matches, e.ProcessEvent(evAt("a2", ts(10, 0, 10), agentEvent("a", "login")))...)
	matches = append(matches, e.ProcessEvent(evAt("b2", ts(10, 0, 15), agentEvent("a", "file_access")))...)

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].MatchedEventIDs[0] != "a1" || matches[0].MatchedEventIDs[1] != "b1" {
		t.Errorf("unexpected first match: %v", matches[0].MatchedEventIDs)
	}
	if matches[1].MatchedEventIDs[0] != "a2" || matches[1].MatchedEventIDs[1] != "b2" {
		t.Errorf("unexpected second match: %v", matches[1].MatchedEventIDs)
	}
}

// S6 — Missing by field.
func TestS6MissingByFieldIgnoresEvent(t *testing.T) {
	e := New(4)
	mustLoad(t, e, loginFileAccessRule())

	matches := e.ProcessEvent(evAt("e1", ts(10, 0, 0), map[string]any{"event": map[string]any{"type": "login"}}))
	if len(matches) != 0 {
		t.Fatalf("expected no matches for event missing by-field, got %d", len(matches))
	}
	if len(e.StateSummary()) != 0 {
		t.Fatal("no correlation state should be created for an event missing its by-field")
	}
}

// S7 — Empty by (global).
func TestS7EmptyByIsGlobal(t *testing.T) {
	e := New(4)
	mustLoad(t, e, &rule.RuleDoc{
		ID:            "seq-global",
		Name:          "global sequence",
		WithinSeconds: 60,
		Sequence: []rule.StepDoc{
			{As: "A", Where: `event.type == "login"`},
			{As: "B", Where: `event.type == "file_access"`},
		},
	})

	var matches []*Match
	matches = append(matches, e.ProcessEvent(evAt("e1", ts(10, 0, 0), map[string]any{"event": map[string]any{"type": "login"}}))...)
	matches = append(matches, e.ProcessEvent(evAt("e2", ts(10, 0, 5), map[string]any{"event": map[string]any{"type": "file_access"}}))...)

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].CorrelationKey != "default" {
		t.Errorf("expected correlation key 'default', got %q", matches[0].CorrelationKey)
	}
}

func TestRemoveRuleDropsState(t *testing.T) {
	e := New(4)
	r := mustLoad(t, e, loginFileAccessRule())
	e.ProcessEvent(evAt("e1", ts(10, 0, 0), agentEvent("a", "login")))

	if len(e.StateSummary()) != 1 {
		t.Fatal("expected one in-flight state before RemoveRule")
	}

	if !e.RemoveRule(r.ID) {
		t.Fatal("expected RemoveRule to report the rule was loaded")
	}
	if len(e.StateSummary()) != 0 {
		t.Error("expected RemoveRule to drop in-flight state for that rule")
	}
	if e.RemoveRule(r.ID) {
		t.Error("expected second RemoveRule call to report false")
	}
}

func TestGCSweepDropsStaleProgress(t *testing.T) {
	e := New(4)
	mustLoad(t, e, loginFileAccessRule())

	e.ProcessEvent(evAt("e1", ts(10, 0, 0), agentEvent("a", "login")))
	if len(e.StateSummary()) != 1 {
		t.Fatal("expected in-flight state after step 0 match")
	}

	// An unrelated key's event, long after the window, should trigger the
	// sweep and drop agent a's stale single-step progress.
	e.ProcessEvent(evAt("e2", ts(11, 0, 0), agentEvent("z", "nope")))

	for _, st := range e.StateSummary() {
		if st.RuleID == "seq-1" && st.CorrelationKey == "a" {
			t.Fatal("expected stale agent-a state to be swept")
		}
	}
}

func TestDuplicateRuleLoadIsRejected(t *testing.T) {
	e := New(4)
	mustLoad(t, e, loginFileAccessRule())
	if _, err := e.LoadRule(loginFileAccessRule()); err == nil {
		t.Fatal("expected duplicate rule load to fail")
	}
}

func TestCompletedStateRestartsOnNextCycle(t *testing.T) {
	// Regression for the "monotone advance" property: a completed state must
	// never be reused to seed a 3rd step on a 2-step rule.
	e := New(4)
	mustLoad(t, e, loginFileAccessRule())

	e.ProcessEvent(evAt("a1", ts(10, 0, 0), agentEvent("a", "login")))
	e.ProcessEvent(evAt("b1", ts(10, 0, 1), agentEvent("a", "file_access")))

	matches := e.ProcessEvent(evAt("b2", ts(10, 0, 2), agentEvent("a", "file_access")))
	if len(matches) != 0 {
		t.Fatalf("a lone step-B event right after a completed match must not itself match, got %d", len(matches))
	}
}
