package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"mercator-hq/fieldguard/pkg/reports"
)

// MemoryStorage implements reports.Storage with an in-memory map. It is
// meant for tests and single-process runs that do not need persistence.
type MemoryStorage struct {
	records map[string]*reports.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*reports.Record),
	}
}

// Store persists a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *reports.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return reports.NewStorageError("memory", "store", fmt.Errorf("duplicate record id %q", record.ID))
	}
	recordCopy := *record
	s.records[record.ID] = &recordCopy
	return nil
}

// Get returns the record with id.
func (s *MemoryStorage) Get(ctx context.Context, id string) (*reports.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reports.ErrNotFound, id)
	}
	recordCopy := *record
	return &recordCopy, nil
}

// Query retrieves records matching q, ordered like the sqlite backend.
func (s *MemoryStorage) Query(ctx context.Context, q *reports.Query) ([]*reports.Record, error) {
	s.mu.RLock()
	results := []*reports.Record{}
	for _, record := range s.records {
		if matchesQuery(record, q) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}
	s.mu.RUnlock()

	asc := strings.EqualFold(q.SortOrder, "asc")
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if !a.PassTime.Equal(b.PassTime) {
			if asc {
				return a.PassTime.Before(b.PassTime)
			}
			return a.PassTime.After(b.PassTime)
		}
		if asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	start := q.Offset
	if start > len(results) {
		return []*reports.Record{}, nil
	}
	limit := defaultQueryLimit
	if q.Limit > 0 {
		limit = q.Limit
	}
	end := min(start+limit, len(results))
	return results[start:end], nil
}

// Count returns the number of records matching q.
func (s *MemoryStorage) Count(ctx context.Context, q *reports.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matchesQuery(record, q) {
			count++
		}
	}
	return count, nil
}

// Delete removes records matching q.
func (s *MemoryStorage) Delete(ctx context.Context, q *reports.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if matchesQuery(record, q) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close drops all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*reports.Record)
	return nil
}

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func matchesQuery(record *reports.Record, q *reports.Query) bool {
	if q.StartTime != nil && record.PassTime.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && record.PassTime.After(*q.EndTime) {
		return false
	}
	if q.PassID != "" && record.PassID != q.PassID {
		return false
	}
	if q.FieldID != "" && !slices.Contains(record.FieldIDs, q.FieldID) {
		return false
	}
	if q.RuleID != "" && !slices.Contains(record.RuleIDs, q.RuleID) {
		return false
	}
	switch q.Status {
	case reports.StatusFailed:
		if !record.HasErrors {
			return false
		}
	case reports.StatusPassed:
		if record.HasErrors {
			return false
		}
	}
	return true
}
