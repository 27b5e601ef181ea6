package historystore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// InMemorySearchStore is a size-limited SearchStore. It mirrors the ordering of the
// SQLite store; the oldest record is evicted once maxRecords is reached.
type InMemorySearchStore struct {
	mu         sync.Mutex
	maxRecords int
	records    map[string]Record
}

var _ SearchStore = &InMemorySearchStore{}

func NewInMemorySearchStore(maxRecords int) *InMemorySearchStore {
	if maxRecords <= 0 {
		maxRecords = 500
	}
	return &InMemorySearchStore{
		maxRecords: maxRecords,
		records:    map[string]Record{},
	}
}

func (s *InMemorySearchStore) Close() error { return nil }

func (s *InMemorySearchStore) Save(_ context.Context, r Record) error {
	if s == nil {
		return errors.New("in-memory search store: nil store")
	}
	r = normalizeRecord(r, time.Now().UnixMilli())
	if r.SessionID == "" {
		return errors.New("in-memory search store: sessionID is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.SessionID] = r
	if len(s.records) > s.maxRecords {
		sorted := s.sortedLocked()
		for _, old := range sorted[s.maxRecords:] {
			delete(s.records, old.SessionID)
		}
	}
	return nil
}

func (s *InMemorySearchStore) Get(_ context.Context, sessionID string) (Record, bool, error) {
	if s == nil {
		return Record{}, false, errors.New("in-memory search store: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[strings.TrimSpace(sessionID)]
	return r, ok, nil
}

func (s *InMemorySearchStore) List(_ context.Context, q Query) ([]Record, error) {
	if s == nil {
		return nil, errors.New("in-memory search store: nil store")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := []Record{}
	for _, r := range s.sortedLocked() {
		if !q.matches(r) {
			continue
		}
		ret = append(ret, r)
		if len(ret) == limit {
			break
		}
	}
	return ret, nil
}

func (s *InMemorySearchStore) Delete(_ context.Context, sessionID string) (bool, error) {
	if s == nil {
		return false, errors.New("in-memory search store: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID = strings.TrimSpace(sessionID)
	if _, ok := s.records[sessionID]; !ok {
		return false, nil
	}
	delete(s.records, sessionID)
	return true, nil
}

// newest first, session id breaks ties
func (s *InMemorySearchStore) sortedLocked() []Record {
	ret := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		ret = append(ret, r)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAtMs != ret[j].CreatedAtMs {
			return ret[i].CreatedAtMs > ret[j].CreatedAtMs
		}
		return ret[i].SessionID > ret[j].SessionID
	})
	return ret
}
