package correlation

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// defaultShardCount matches the engine's default configuration (see
// internal/config). It is only a fallback for an Engine constructed with a
// non-positive shard count.
const defaultShardCount = 16

// stateKey identifies one rule's progress on one correlation key.
type stateKey struct {
	ruleID string
	key    string
}

// shard is one lock-striped bucket of correlation state. Sharding by
// xxhash(ruleID, key) keeps any single sweep or lookup from contending on a
// single global lock, and bounds a GC sweep's per-shard cost.
type shard struct {
	mu     sync.Mutex
	states map[stateKey]*CorrelationState
}

// shardedStates is the engine's correlation-state storage, striped across a
// fixed number of shards for the lifetime of the Engine.
type shardedStates struct {
	shards []*shard
}

func newShardedStates(count int) *shardedStates {
	if count <= 0 {
		count = defaultShardCount
	}
	shards := make([]*shard, count)
	for i := range shards {
		shards[i] = &shard{states: make(map[stateKey]*CorrelationState)}
	}
	return &shardedStates{shards: shards}
}

func (s *shardedStates) shardFor(k stateKey) *shard {
	h := xxhash.Sum64String(k.ruleID + "\x00" + k.key)
	return s.shards[h%uint64(len(s.shards))]
}

// lookup returns the stored state for k, if any, without creating one.
func (s *shardedStates) lookup(k stateKey) (*CorrelationState, bool) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.states[k]
	return st, ok
}

// put stores st as k's progress. Called only once st has made progress
// (CurrentStep > 0): a zero-progress state is not worth an entry.
func (s *shardedStates) put(k stateKey, st *CorrelationState) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	sh.states[k] = st
	sh.mu.Unlock()
}

// delete removes k's entry, if any.
func (s *shardedStates) delete(k stateKey) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	delete(sh.states, k)
	sh.mu.Unlock()
}

// dropRule removes every stored state belonging to ruleID, used when a rule
// is unloaded so its correlation keys don't linger forever.
func (s *shardedStates) dropRule(ruleID string) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k := range sh.states {
			if k.ruleID == ruleID {
				delete(sh.states, k)
			}
		}
		sh.mu.Unlock()
	}
}

func (s *shardedStates) reset() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.states = make(map[stateKey]*CorrelationState)
		sh.mu.Unlock()
	}
}

// sweep drops every stored state whose LastTS is older than its rule's
// window relative to now. windowFor resolves a ruleID to its current window;
// a false second return (rule no longer loaded) skips the entry, since
// RemoveRule already purges its states via dropRule.
func (s *shardedStates) sweep(now time.Time, windowFor func(ruleID string) (time.Duration, bool)) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, st := range sh.states {
			window, ok := windowFor(k.ruleID)
			if !ok {
				continue
			}
			if now.Sub(st.LastTS) > window {
				delete(sh.states, k)
			}
		}
		sh.mu.Unlock()
	}
}

// StateInfo is a point-in-time, read-only view of one live correlation
// state, for observability (Engine.StateSummary).
type StateInfo struct {
	RuleID          string
	CorrelationKey  string
	CurrentStep     int
	MatchedEvents   int
	FirstTS         time.Time
	LastTS          time.Time
	DurationSeconds float64
}

func (s *shardedStates) summary() []StateInfo {
	var out []StateInfo
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, st := range sh.states {
			out = append(out, StateInfo{
				RuleID:          k.ruleID,
				CorrelationKey:  k.key,
				CurrentStep:     st.CurrentStep,
				MatchedEvents:   len(st.MatchedIDs),
				FirstTS:         st.FirstTS,
				LastTS:          st.LastTS,
				DurationSeconds: st.LastTS.Sub(st.FirstTS).Seconds(),
			})
		}
		sh.mu.Unlock()
	}
	return out
}
