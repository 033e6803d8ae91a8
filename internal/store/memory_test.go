package store

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMemoryStoreTracksConsecutiveFailures(t *testing.T) {
	s := NewMemoryStore(2)
	now := time.Now().UTC()
	key := "dockan/temperature/2020-01-01.csv"

	if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if n := s.RecordFailure(key, errors.New("timeout"), now); n != 1 {
		t.Fatalf("expected 1 failure, got %d", n)
	}
	if len(s.Failing()) != 0 {
		t.Fatal("one failure is below threshold")
	}
	if n := s.RecordFailure(key, errors.New("timeout"), now); n != 2 {
		t.Fatalf("expected 2 failures, got %d", n)
	}
	failing := s.Failing()
	if len(failing) != 1 || failing[0].LastError != "timeout" {
		t.Fatalf("expected key to be failing, got %+v", failing)
	}

	s.RecordSuccess(key, "/data/dockan/temperature/2020-01-01.csv", now)
	st, err := s.Get(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ConsecutiveFailures != 0 || st.LastError != "" || st.LocalPath == "" {
		t.Fatalf("success should reset failure state, got %+v", st)
	}
	if st.LastSuccess == nil || !st.LastSuccess.Equal(now) || st.LastFailure == nil {
		t.Fatalf("expected both timestamps recorded, got %+v", st)
	}
	if len(s.Failing()) != 0 {
		t.Fatal("no key should be failing after success")
	}
}

func TestFileStatusOmitsUnsetTimes(t *testing.T) {
	s := NewMemoryStore(1)
	s.RecordSuccess("a", "/a", time.Now())

	st, err := s.Get("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "lastFailure") || !strings.Contains(string(b), "lastSuccess") {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestMemoryStoreAllSorted(t *testing.T) {
	s := NewMemoryStore(0)
	now := time.Now()
	s.RecordSuccess("b", "/b", now)
	s.RecordSuccess("a", "/a", now)
	s.RecordFailure("c", nil, now)

	all := s.All()
	if len(all) != 3 || all[0].Key != "a" || all[2].Key != "c" {
		t.Fatalf("unexpected order: %+v", all)
	}
}
