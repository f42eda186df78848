package correlation

import (
	"strings"
	"sync"
	"time"

	"github.com/huntseq/seqhound/internal/event"
	"github.com/huntseq/seqhound/internal/extract"
	"github.com/huntseq/seqhound/internal/rule"
)

// Match is an immutable record of one rule's sequence completing.
type Match struct {
	RuleID          string
	RuleName        string
	CorrelationKey  string
	MatchedEventIDs []string
	Timestamp       time.Time
	Rule            *rule.CompiledRule
}

// Engine dispatches events against a set of loaded rules, one per-(rule,
// key) correlation state at a time, and emits matches as sequences
// complete. An Engine's ProcessEvent/ProcessEvents are meant to be called
// from a single goroutine; LoadRule/LoadRules/RemoveRule/Reset may be called
// concurrently with each other and are internally synchronized.
type Engine struct {
	mu    sync.RWMutex
	rules []*rule.CompiledRule

	states *shardedStates

	gcEvery     int
	eventsSince int
}

// New creates an Engine whose correlation state is striped across
// shardCount shards (<= 0 uses a sensible default). GC sweeps run after
// every processed event by default; see SetGCInterval to batch them.
func New(shardCount int) *Engine {
	return &Engine{
		states:  newShardedStates(shardCount),
		gcEvery: 1,
	}
}

// SetGCInterval configures the engine to sweep expired state only once
// every n processed events, trading sweep latency for amortized cost on
// high-throughput deployments. n <= 0 is treated as 1 (sweep every event).
func (e *Engine) SetGCInterval(n int) {
	if n <= 0 {
		n = 1
	}
	e.mu.Lock()
	e.gcEvery = n
	e.mu.Unlock()
}

// LoadRule compiles and adds a single rule document. It is an error to load
// a rule whose ID is already present.
func (e *Engine) LoadRule(doc *rule.RuleDoc) (*rule.CompiledRule, error) {
	compiled, err := rule.Compile(doc)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.ID == compiled.ID {
			return nil, &rule.DuplicateRuleError{ID: compiled.ID}
		}
	}
	e.rules = append(e.rules, compiled)
	return compiled, nil
}

// LoadRules compiles and adds each document in order, stopping at the first
// failure. Rules already added by a prior call remain loaded.
func (e *Engine) LoadRules(docs []*rule.RuleDoc) ([]*rule.CompiledRule, error) {
	out := make([]*rule.CompiledRule, 0, len(docs))
	for _, d := range docs {
		c, err := e.LoadRule(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// RemoveRule unloads ruleID and drops any in-flight correlation state for
// it. It reports whether the rule was loaded.
func (e *Engine) RemoveRule(ruleID string) bool {
	e.mu.Lock()
	idx := -1
	for i, r := range e.rules {
		if r.ID == ruleID {
			idx = i
			break
		}
	}
	if idx == -1 {
		e.mu.Unlock()
		return false
	}
	e.rules = append(e.rules[:idx], e.rules[idx+1:]...)
	e.mu.Unlock()

	e.states.dropRule(ruleID)
	return true
}

// Reset discards all in-flight correlation state without unloading rules.
func (e *Engine) Reset() {
	e.states.reset()
}

// Rules returns a snapshot of the currently loaded rules, in load order.
func (e *Engine) Rules() []*rule.CompiledRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*rule.CompiledRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// StateSummary returns a point-in-time snapshot of all live correlation
// state, for observability and warm-restart snapshotting.
func (e *Engine) StateSummary() []StateInfo {
	return e.states.summary()
}

// ProcessEvent evaluates ev against every loaded rule, in load order, and
// returns any matches it completes. A GC sweep runs afterward per the
// configured interval.
func (e *Engine) ProcessEvent(ev *event.Event) []*Match {
	rules := e.Rules()

	var matches []*Match
	for _, r := range rules {
		key, ok := correlationKey(r, ev)
		if !ok {
			continue
		}
		if m := e.stepMatch(r, key, ev); m != nil {
			matches = append(matches, m)
		}
	}

	e.maybeSweep(ev.Timestamp)

	return matches
}

// ProcessEvents runs ProcessEvent over events in order and concatenates the
// resulting matches.
func (e *Engine) ProcessEvents(events []*event.Event) []*Match {
	var all []*Match
	for _, ev := range events {
		all = append(all, e.ProcessEvent(ev)...)
	}
	return all
}

// correlationKey derives the grouping key for r against ev: the
// pipe-joined textual value of every "by" field, or the constant "default"
// when the rule declares no "by" fields at all. Any missing "by" field
// means ev cannot participate in this rule's correlation.
func correlationKey(r *rule.CompiledRule, ev *event.Event) (string, bool) {
	if len(r.By) == 0 {
		return "default", true
	}

	sentinel := new(struct{})
	parts := make([]string, len(r.By))
	for i, path := range r.By {
		v := extract.Extract(ev.Fields, path, sentinel)
		if v == sentinel {
			return "", false
		}
		parts[i] = extract.ToText(v)
	}
	return strings.Join(parts, "|"), true
}

// stepMatch runs one event through one rule's correlation state for key. It
// implements the sequence engine's core algorithm:
//
//  1. A completed state (from a prior match never swept) restarts at step 0.
//  2. The event is tested against the current step's predicate; a miss
//     leaves state untouched.
//  3. Past the first step, if the window has elapsed since the first
//     matched event, the state restarts and the event is retried against
//     step 0 — a single restart attempt, not a rescan of every prior index.
//  4. A hit advances the state; completing the last step emits a Match and
//     resets the state for the next occurrence of this key.
func (e *Engine) stepMatch(r *rule.CompiledRule, key string, ev *event.Event) *Match {
	sk := stateKey{ruleID: r.ID, key: key}

	state, existed := e.states.lookup(sk)
	if !existed {
		state = NewCorrelationState(key)
	}

	n := len(r.Steps)
	if state.IsComplete(n) {
		state.Reset()
		if existed {
			e.states.delete(sk)
			existed = false
		}
	}

	i := state.CurrentStep
	if !r.Steps[i].Predicate(ev.Fields) {
		return nil
	}

	if i > 0 && ev.Timestamp.Sub(state.FirstTS) > r.Window {
		state.Reset()
		if existed {
			e.states.delete(sk)
			existed = false
		}
		if !r.Steps[0].Predicate(ev.Fields) {
			return nil
		}
	}

	state.Advance(ev.ID, ev.Timestamp)
	e.states.put(sk, state)

	if state.IsComplete(n) {
		matched := append([]string(nil), state.MatchedIDs...)
		match := &Match{
			RuleID:          r.ID,
			RuleName:        r.Name,
			CorrelationKey:  key,
			MatchedEventIDs: matched,
			Timestamp:       ev.Timestamp,
			Rule:            r,
		}
		state.Reset()
		e.states.delete(sk)
		return match
	}

	return nil
}

func (e *Engine) maybeSweep(now time.Time) {
	e.mu.Lock()
	e.eventsSince++
	due := e.eventsSince >= e.gcEvery
	if due {
		e.eventsSince = 0
	}
	e.mu.Unlock()

	if !due {
		return
	}

	e.states.sweep(now, func(ruleID string) (time.Duration, bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for _, r := range e.rules {
			if r.ID == ruleID {
				return r.Window, true
			}
		}
		return 0, false
	})
}
