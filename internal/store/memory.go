package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no sync outcome has been recorded for a key.
	ErrNotFound = errors.New("no sync status for key")
)

// FileStatus is the latest refresh outcome for one remote key.
type FileStatus struct {
	Key                 string     `json:"key"`
	LocalPath           string     `json:"localPath,omitempty"`
	LastSuccess         *time.Time `json:"lastSuccess,omitempty"`
	LastFailure         *time.Time `json:"lastFailure,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

// MemoryStore is a concurrency-safe in-memory record of sync outcomes.
// It holds no readings; the cache tree stays the only source of weather data.
type MemoryStore struct {
	mu sync.RWMutex

	// key: remote object key or directory prefix
	data map[string]*FileStatus

	// failures at or above this count are reported as persistent
	threshold int
}

// NewMemoryStore creates a MemoryStore. A threshold <= 0 is treated as 1.
func NewMemoryStore(threshold int) *MemoryStore {
	if threshold <= 0 {
		threshold = 1
	}
	return &MemoryStore{
		data:      make(map[string]*FileStatus),
		threshold: threshold,
	}
}

// RecordSuccess marks key as installed at localPath and resets its failure count.
func (s *MemoryStore) RecordSuccess(key, localPath string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.entry(key)
	st.LocalPath = localPath
	st.LastSuccess = &at
	st.ConsecutiveFailures = 0
	st.LastError = ""
}

// RecordFailure stores err against key and returns the consecutive failure count.
func (s *MemoryStore) RecordFailure(key string, err error, at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.entry(key)
	st.LastFailure = &at
	st.ConsecutiveFailures++
	if err != nil {
		st.LastError = err.Error()
	}
	return st.ConsecutiveFailures
}

func (s *MemoryStore) entry(key string) *FileStatus {
	st, ok := s.data[key]
	if !ok {
		st = &FileStatus{Key: key}
		s.data[key] = st
	}
	return st
}

// Get returns the status recorded for key.
func (s *MemoryStore) Get(key string) (FileStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.data[key]
	if !ok {
		return FileStatus{}, ErrNotFound
	}
	return *st, nil
}

// All returns every recorded status sorted by key.
func (s *MemoryStore) All() []FileStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]FileStatus, 0, len(s.data))
	for _, st := range s.data {
		result = append(result, *st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Failing returns the keys whose consecutive failures reached the threshold.
func (s *MemoryStore) Failing() []FileStatus {
	var result []FileStatus
	for _, st := range s.All() {
		if st.ConsecutiveFailures >= s.threshold {
			result = append(result, st)
		}
	}
	return result
}
