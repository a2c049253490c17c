package memory

import (
	"context"
	"sync"

	"telegram-campaign-dispatch/internal/ports"

	"github.com/google/uuid"
)

// Store is an in-process ports.ProgressStore. It backs tests and
// single-binary deployments where the API and worker share a process.
type Store struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]ports.ProgressSnapshot
	cancels   map[uuid.UUID]bool
}

func New() *Store {
	return &Store{
		snapshots: make(map[uuid.UUID]ports.ProgressSnapshot),
		cancels:   make(map[uuid.UUID]bool),
	}
}

func (s *Store) Publish(_ context.Context, snap ports.ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.CampaignID] = snap
}

func (s *Store) Snapshot(_ context.Context, campaignID uuid.UUID) (ports.ProgressSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[campaignID]
	return snap, ok, nil
}

func (s *Store) RequestCancel(_ context.Context, campaignID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[campaignID] = true
	return nil
}

func (s *Store) ClearCancel(_ context.Context, campaignID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, campaignID)
	return nil
}

func (s *Store) CancelRequested(_ context.Context, campaignID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancels[campaignID]
}
