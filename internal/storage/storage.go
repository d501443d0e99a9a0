// Package storage defines the persistence contracts for the camp engine.
//
// The event journal is the durable, append-only ledger; the remaining stores
// are projections the service layer keeps consistent under the per-camp
// writer lock.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/camp/event"
	"github.com/louisbranch/summit.camp/internal/identity"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// CampStore persists camp aggregate records.
type CampStore interface {
	PutCamp(ctx context.Context, camp domain.Camp) error
	GetCamp(ctx context.Context, id string) (domain.Camp, error)
	ListCamps(ctx context.Context) ([]domain.Camp, error)
}

// ParticipantStore persists participant records scoped to a camp.
type ParticipantStore interface {
	PutParticipant(ctx context.Context, participant domain.Participant) error
	GetParticipant(ctx context.Context, campID string, addr identity.Address) (domain.Participant, error)
	ListParticipants(ctx context.Context, campID string) ([]domain.Participant, error)
	CountParticipants(ctx context.Context, campID string) (int, error)
}

// CredentialStore persists level credential commitments.
// Commitments are append-only: PutCredential must reject a write for a
// (camp, level, scope) tuple that already holds a commitment.
type CredentialStore interface {
	PutCredential(ctx context.Context, credential domain.LevelCredential) error
	GetCredential(ctx context.Context, campID string, level int, scope identity.Address) (domain.LevelCredential, error)
	ListCredentials(ctx context.Context, campID string) ([]domain.LevelCredential, error)
}

// VerificationStore persists accepted verification records.
type VerificationStore interface {
	PutVerification(ctx context.Context, record domain.VerificationRecord) error
	GetVerification(ctx context.Context, campID string, level int, participant identity.Address) (domain.VerificationRecord, error)
	ListVerifications(ctx context.Context, campID string) ([]domain.VerificationRecord, error)
}

// EventStore persists the append-only camp event journal.
type EventStore interface {
	// AppendEvent atomically appends an event and returns it with sequence
	// and hash assigned.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// AppendEvents atomically appends a batch of events: either every event
	// is journaled with sequence and hash assigned, or none is. Operations
	// that emit multiple events must use this so a failure cannot leave a
	// prefix of the batch behind.
	AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error)
	// ListEvents returns a camp's events with Seq greater than afterSeq, in
	// sequence order, up to limit entries.
	ListEvents(ctx context.Context, campID string, afterSeq uint64, limit int) ([]event.Event, error)
}

// Store bundles every persistence contract the camp service needs.
type Store interface {
	CampStore
	ParticipantStore
	CredentialStore
	VerificationStore
	EventStore
}
