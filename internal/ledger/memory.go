package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps records for the lifetime of the process
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

func (s *MemoryStore) Init(context.Context) error {
	return nil
}

func (s *MemoryStore) Begin(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Args = slices.Clone(rec.Args)
	rec.Status = StatusRunning
	rec.ExitCode = 0
	rec.Error = ""
	rec.EndedAtUnixMs = 0
	if rec.StartedAtUnixMs == 0 {
		rec.StartedAtUnixMs = nowUnixMs()
	}
	s.records[rec.ID] = &rec
	return nil
}

func (s *MemoryStore) Finish(_ context.Context, id string, exitCode int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.Status = finishedStatus(exitCode, errMsg)
	rec.ExitCode = exitCode
	rec.Error = errMsg
	rec.EndedAtUnixMs = nowUnixMs()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, false, nil
	}
	out := *rec
	out.Args = slices.Clone(rec.Args)
	return out, true, nil
}

func (s *MemoryStore) List(_ context.Context, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	out := make([]Record, 0, min(limit, len(s.records)))
	for _, rec := range s.records {
		if q.SweepID != "" && rec.SweepID != q.SweepID {
			continue
		}
		if q.Stage != "" && rec.Stage != q.Stage {
			continue
		}
		r := *rec
		r.Args = slices.Clone(rec.Args)
		out = append(out, r)
	}
	slices.SortFunc(out, compareRecords)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Summary(_ context.Context, sweepID string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum Summary
	for _, rec := range s.records {
		if sweepID != "" && rec.SweepID != sweepID {
			continue
		}
		sum.add(rec.Status, 1)
	}
	return sum, nil
}

// compareRecords orders by start time, then id
func compareRecords(a, b Record) int {
	if c := cmp.Compare(a.StartedAtUnixMs, b.StartedAtUnixMs); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
