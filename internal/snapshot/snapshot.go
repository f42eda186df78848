// Package snapshot periodically persists a point-in-time view of the
// correlation engine's in-flight state to a bbolt-backed store, purely for
// observability and warm-restart inspection. It sits off the engine's hot
// path: ProcessEvent never blocks on it, and losing a snapshot never loses
// a match (matches are emitted synchronously from ProcessEvent itself).
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"

	"github.com/huntseq/seqhound/internal/correlation"
)

var stateBucket = []byte("state")

// Store persists correlation.StateInfo snapshots to a single bbolt file,
// zstd-compressing each snapshot's JSON payload before it touches disk.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the bbolt database at path, creating the state
// bucket if absent.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write compresses and persists summary under key, overwriting any prior
// snapshot with the same key (conventionally a timestamp or "latest").
func (s *Store) Write(key string, summary []correlation.StateInfo) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal state summary: %w", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if _, err := enc.Write(payload); err != nil {
		enc.Close()
		return fmt.Errorf("failed to compress state summary: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize zstd stream: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put([]byte(key), buf.Bytes())
	})
}

// Read decompresses and decodes the snapshot stored under key.
func (s *Store) Read(key string) ([]correlation.StateInfo, error) {
	var compressed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(stateBucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("no snapshot found for key %q", key)
		}
		compressed = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	payload, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress state summary: %w", err)
	}

	var summary []correlation.StateInfo
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state summary: %w", err)
	}
	return summary, nil
}

// Runner periodically writes a state summary to a Store until stopped. The
// summary is pulled through a source function rather than a fixed Engine
// pointer, so callers whose active engine is swapped at runtime (hot
// reload) always snapshot the live one.
type Runner struct {
	store    *Store
	source   func() []correlation.StateInfo
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewRunner builds a Runner; callers invoke Start to begin the periodic
// snapshot loop in a background goroutine.
func NewRunner(store *Store, source func() []correlation.StateInfo, interval time.Duration) *Runner {
	return &Runner{store: store, source: source, interval: interval, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start runs the periodic snapshot loop until Stop is called.
func (r *Runner) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				_ = r.store.Write("latest", r.source())
			}
		}
	}()
}

// Stop ends the snapshot loop and waits for it to exit.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.done
}
