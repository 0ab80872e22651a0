package stores

import (
	"context"
	"sync"
	"time"
)

// MemoryResetStore is the in-process ResetStore. Records do not expire on
// their own; the ttl argument is ignored because expiry is judged by the flow
// against ExpiresAt.
type MemoryResetStore struct {
	mu      sync.Mutex
	records map[string]ResetRecord
}

func NewMemoryResetStore() *MemoryResetStore {
	return &MemoryResetStore{records: make(map[string]ResetRecord)}
}

func (s *MemoryResetStore) Save(_ context.Context, key string, record *ResetRecord, _ time.Duration) error {
	if record == nil {
		return ErrResetNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = *record
	return nil
}

func (s *MemoryResetStore) Get(_ context.Context, key string) (*ResetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return nil, ErrResetNotFound
	}
	return &record, nil
}

func (s *MemoryResetStore) MarkVerified(_ context.Context, key, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok || record.FlowID != flowID {
		return ErrResetNotFound
	}
	record.Verified = true
	s.records[key] = record
	return nil
}

func (s *MemoryResetStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
