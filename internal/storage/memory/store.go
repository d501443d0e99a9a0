// Package memory provides an in-memory Store used by tests and seeding.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/camp/event"
	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/storage"
)

type credentialKey struct {
	campID string
	level  int
	scope  identity.Address
}

type verificationKey struct {
	campID      string
	level       int
	participant identity.Address
}

// Store is an in-memory implementation of storage.Store. All methods are
// safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	camps         map[string]domain.Camp
	participants  map[string]map[identity.Address]domain.Participant
	credentials   map[credentialKey]domain.LevelCredential
	verifications map[verificationKey]domain.VerificationRecord
	events        map[string][]event.Event
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		camps:         make(map[string]domain.Camp),
		participants:  make(map[string]map[identity.Address]domain.Participant),
		credentials:   make(map[credentialKey]domain.LevelCredential),
		verifications: make(map[verificationKey]domain.VerificationRecord),
		events:        make(map[string][]event.Event),
	}
}

// PutCamp stores a camp record.
func (s *Store) PutCamp(_ context.Context, camp domain.Camp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camps[camp.ID] = camp
	return nil
}

// GetCamp returns a camp record by id.
func (s *Store) GetCamp(_ context.Context, id string) (domain.Camp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	camp, ok := s.camps[id]
	if !ok {
		return domain.Camp{}, storage.ErrNotFound
	}
	return camp, nil
}

// ListCamps returns all camps ordered by creation time.
func (s *Store) ListCamps(_ context.Context) ([]domain.Camp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	camps := make([]domain.Camp, 0, len(s.camps))
	for _, camp := range s.camps {
		camps = append(camps, camp)
	}
	sort.Slice(camps, func(i, j int) bool {
		if camps[i].CreatedAt.Equal(camps[j].CreatedAt) {
			return camps[i].ID < camps[j].ID
		}
		return camps[i].CreatedAt.Before(camps[j].CreatedAt)
	})
	return camps, nil
}

// PutParticipant stores a participant record.
func (s *Store) PutParticipant(_ context.Context, participant domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byAddr, ok := s.participants[participant.CampID]
	if !ok {
		byAddr = make(map[identity.Address]domain.Participant)
		s.participants[participant.CampID] = byAddr
	}
	byAddr[participant.Address] = cloneParticipant(participant)
	return nil
}

// GetParticipant returns a camp participant by address.
func (s *Store) GetParticipant(_ context.Context, campID string, addr identity.Address) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participant, ok := s.participants[campID][addr]
	if !ok {
		return domain.Participant{}, storage.ErrNotFound
	}
	return cloneParticipant(participant), nil
}

// ListParticipants returns a camp's participants ordered by join index.
func (s *Store) ListParticipants(_ context.Context, campID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participants := make([]domain.Participant, 0, len(s.participants[campID]))
	for _, participant := range s.participants[campID] {
		participants = append(participants, cloneParticipant(participant))
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].Index < participants[j].Index
	})
	return participants, nil
}

// CountParticipants returns the number of participants in a camp.
func (s *Store) CountParticipants(_ context.Context, campID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants[campID]), nil
}

// PutCredential stores a level credential. Commitments are append-only: a
// second write for the same scope fails.
func (s *Store) PutCredential(_ context.Context, credential domain.LevelCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := credentialKey{campID: credential.CampID, level: credential.Level, scope: credential.ParticipantScope}
	if _, exists := s.credentials[key]; exists {
		return fmt.Errorf("credential for camp %s level %d already exists", credential.CampID, credential.Level)
	}
	s.credentials[key] = credential
	return nil
}

// GetCredential returns the credential for a (camp, level, scope) tuple.
func (s *Store) GetCredential(_ context.Context, campID string, level int, scope identity.Address) (domain.LevelCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.credentials[credentialKey{campID: campID, level: level, scope: scope}]
	if !ok {
		return domain.LevelCredential{}, storage.ErrNotFound
	}
	return credential, nil
}

// ListCredentials returns a camp's credentials ordered by level then scope.
func (s *Store) ListCredentials(_ context.Context, campID string) ([]domain.LevelCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credentials := make([]domain.LevelCredential, 0)
	for key, credential := range s.credentials {
		if key.campID == campID {
			credentials = append(credentials, credential)
		}
	}
	sort.Slice(credentials, func(i, j int) bool {
		if credentials[i].Level != credentials[j].Level {
			return credentials[i].Level < credentials[j].Level
		}
		return credentials[i].ParticipantScope < credentials[j].ParticipantScope
	})
	return credentials, nil
}

// PutVerification stores an accepted verification record.
func (s *Store) PutVerification(_ context.Context, record domain.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := verificationKey{campID: record.CampID, level: record.Level, participant: record.Participant}
	s.verifications[key] = record
	return nil
}

// GetVerification returns the verification record for a participant level.
func (s *Store) GetVerification(_ context.Context, campID string, level int, participant identity.Address) (domain.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.verifications[verificationKey{campID: campID, level: level, participant: participant}]
	if !ok {
		return domain.VerificationRecord{}, storage.ErrNotFound
	}
	return record, nil
}

// ListVerifications returns a camp's verification records ordered by time.
func (s *Store) ListVerifications(_ context.Context, campID string) ([]domain.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]domain.VerificationRecord, 0)
	for key, record := range s.verifications {
		if key.campID == campID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].VerifiedAt.Before(records[j].VerifiedAt)
	})
	return records, nil
}

// AppendEvent appends an event to the camp journal, assigning Seq and Hash.
func (s *Store) AppendEvent(_ context.Context, evt event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(evt), nil
}

// AppendEvents appends a batch of events under a single lock hold, so the
// whole batch lands contiguously or not at all.
func (s *Store) AppendEvents(_ context.Context, events []event.Event) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appended := make([]event.Event, 0, len(events))
	for _, evt := range events {
		appended = append(appended, s.appendLocked(evt))
	}
	return appended, nil
}

func (s *Store) appendLocked(evt event.Event) event.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
	evt.Seq = uint64(len(s.events[evt.CampID]) + 1)
	evt.Hash = event.ContentHash(evt)
	s.events[evt.CampID] = append(s.events[evt.CampID], evt)
	return evt
}

// ListEvents returns journal events after afterSeq, up to limit entries.
func (s *Store) ListEvents(_ context.Context, campID string, afterSeq uint64, limit int) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	journal := s.events[campID]
	events := make([]event.Event, 0)
	for _, evt := range journal {
		if evt.Seq <= afterSeq {
			continue
		}
		events = append(events, evt)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}

// cloneParticipant deep-copies the completed level set so callers cannot
// mutate stored state through the shared map.
func cloneParticipant(p domain.Participant) domain.Participant {
	cloned := p
	cloned.CompletedLevels = make(map[int]struct{}, len(p.CompletedLevels))
	for level := range p.CompletedLevels {
		cloned.CompletedLevels[level] = struct{}{}
	}
	return cloned
}
