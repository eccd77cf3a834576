package cache

import (
	"encoding/json"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

// TTL is how long an entry is served before it counts as absent.
const TTL = 24 * time.Hour

// Entry is what gets written to storage for each cached value.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"` // ms since the epoch
}

type Stats struct {
	Entries int
	Bytes   int64
}

// Store is a TTL cache over a Storage. It never returns errors to
// callers; a failing store reads as a miss.
type Store struct {
	storage Storage
	logger  log.Logger
	clock   clockwork.Clock
}

type Option func(*Store)

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

func NewStore(storage Storage, logger log.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Store{
		storage: storage,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// Save stores v, stamped with the current time.
func (s *Store) Save(k Keyer, v interface{}) {
	value, err := json.Marshal(v)
	if err != nil {
		s.logger.Log("warn", "cannot encode value for cache", "key", k.Key(), "err", err)
		return
	}
	bytes, err := json.Marshal(Entry{Value: value, Timestamp: millis(s.clock.Now())})
	if err != nil {
		s.logger.Log("warn", "cannot encode cache entry", "key", k.Key(), "err", err)
		return
	}
	if err := s.storage.Set(k.Key(), bytes); err != nil {
		s.logger.Log("warn", "cannot write to cache", "key", k.Key(), "err", err)
	}
}

// Get fills v from the entry at k and reports whether it did. Entries
// older than TTL are deleted and reported as absent.
func (s *Store) Get(k Keyer, v interface{}) bool {
	bytes, err := s.storage.Get(k.Key())
	if err != nil {
		if errors.Cause(err) != ErrNotCached {
			s.logger.Log("warn", "cannot read from cache", "key", k.Key(), "err", err)
		}
		return false
	}
	var entry Entry
	if err := json.Unmarshal(bytes, &entry); err != nil {
		s.logger.Log("warn", "cannot decode cache entry", "key", k.Key(), "err", err)
		return false
	}
	if millis(s.clock.Now())-entry.Timestamp > int64(TTL/time.Millisecond) {
		s.Clear(k)
		return false
	}
	if err := json.Unmarshal(entry.Value, v); err != nil {
		s.logger.Log("warn", "cannot decode cached value", "key", k.Key(), "err", err)
		return false
	}
	return true
}

func (s *Store) Clear(k Keyer) {
	s.delete(k.Key())
}

// ClearAll removes every entry this package wrote, and nothing else.
func (s *Store) ClearAll() {
	s.clearPrefix(Prefix + ":")
}

func (s *Store) ClearNamespace(ns Namespace) {
	s.clearPrefix(NamespacePrefix(ns))
}

func (s *Store) Stats() Stats {
	var stats Stats
	keys, err := s.storage.Keys(Prefix + ":")
	if err != nil {
		s.logger.Log("warn", "cannot list cache keys", "err", err)
		return stats
	}
	for _, key := range keys {
		value, err := s.storage.Get(key)
		if err != nil {
			continue
		}
		stats.Entries++
		stats.Bytes += int64(len(key) + len(value))
	}
	return stats
}

func (s *Store) clearPrefix(prefix string) {
	keys, err := s.storage.Keys(prefix)
	if err != nil {
		s.logger.Log("warn", "cannot list cache keys", "prefix", prefix, "err", err)
		return
	}
	for _, key := range keys {
		s.delete(key)
	}
}

func (s *Store) delete(key string) {
	if err := s.storage.Delete(key); err != nil {
		s.logger.Log("warn", "cannot delete from cache", "key", key, "err", err)
	}
}
