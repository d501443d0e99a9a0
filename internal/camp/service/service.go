// Package service orchestrates the camp engine: it loads state under the
// per-camp writer lock, validates the operation against the aggregate,
// appends the resulting events to the durable journal, and only then applies
// the projections. An append failure leaves every projection untouched.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/camp/event"
	"github.com/louisbranch/summit.camp/internal/credential"
	"github.com/louisbranch/summit.camp/internal/escrow"
	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/platform/errors"
	"github.com/louisbranch/summit.camp/internal/platform/id"
	"github.com/louisbranch/summit.camp/internal/progress"
	"github.com/louisbranch/summit.camp/internal/storage"
)

// Service coordinates camp lifecycle, escrow and credential operations.
type Service struct {
	store         storage.Store
	balances      escrow.BalanceSource
	engine        *credential.Engine
	clock         func() time.Time
	idGenerator   func() (string, error)
	penaltyPolicy escrow.PenaltyPolicy
	locks         *campLocker
	tracer        trace.Tracer
}

// NewService creates a Service with default dependencies.
func NewService(store storage.Store, balances escrow.BalanceSource) *Service {
	if balances == nil {
		balances = escrow.UnlimitedBalances{}
	}
	return &Service{
		store:         store,
		balances:      balances,
		engine:        credential.NewEngine(nil, nil),
		clock:         time.Now,
		idGenerator:   id.NewID,
		penaltyPolicy: escrow.PolicyOrganizer,
		locks:         newCampLocker(),
		tracer:        otel.Tracer("summit.camp/camp"),
	}
}

// SetPenaltyPolicy overrides where forfeited deposits go.
func (s *Service) SetPenaltyPolicy(policy escrow.PenaltyPolicy) error {
	if !policy.Valid() {
		return fmt.Errorf("unknown penalty policy %q", policy)
	}
	s.penaltyPolicy = policy
	return nil
}

// GetCamp returns a camp by id.
func (s *Service) GetCamp(ctx context.Context, campID string) (domain.Camp, error) {
	camp, err := s.store.GetCamp(ctx, campID)
	if err == storage.ErrNotFound {
		return domain.Camp{}, errors.WithMetadata(errors.CodeNotFound, "camp not found", map[string]string{"camp_id": campID})
	}
	if err != nil {
		return domain.Camp{}, fmt.Errorf("load camp: %w", err)
	}
	return camp, nil
}

// ListCamps returns every camp ordered by creation time.
func (s *Service) ListCamps(ctx context.Context) ([]domain.Camp, error) {
	return s.store.ListCamps(ctx)
}

// Participants returns a camp's participants ordered by join index.
func (s *Service) Participants(ctx context.Context, campID string) ([]domain.Participant, error) {
	if _, err := s.GetCamp(ctx, campID); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, campID)
}

// Progress returns one participant's progression snapshot.
func (s *Service) Progress(ctx context.Context, campID string, addr identity.Address) (progress.Snapshot, error) {
	camp, err := s.GetCamp(ctx, campID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	participant, err := s.store.GetParticipant(ctx, campID, addr)
	if err == storage.ErrNotFound {
		return progress.Snapshot{}, errors.WithMetadata(errors.CodeNotFound, "participant not found", map[string]string{
			"camp_id": campID,
			"address": addr.String(),
		})
	}
	if err != nil {
		return progress.Snapshot{}, fmt.Errorf("load participant: %w", err)
	}
	return progress.Of(participant, camp.TotalLevels), nil
}

// CampProgress returns progression snapshots for every participant.
func (s *Service) CampProgress(ctx context.Context, campID string) ([]progress.Snapshot, error) {
	camp, err := s.GetCamp(ctx, campID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, campID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	snapshots := make([]progress.Snapshot, 0, len(participants))
	for _, participant := range participants {
		snapshots = append(snapshots, progress.Of(participant, camp.TotalLevels))
	}
	return snapshots, nil
}

// EscrowLedger derives the camp's escrow view and verifies it reconciles.
func (s *Service) EscrowLedger(ctx context.Context, campID string) (escrow.Ledger, error) {
	camp, err := s.GetCamp(ctx, campID)
	if err != nil {
		return escrow.Ledger{}, err
	}
	participants, err := s.store.ListParticipants(ctx, campID)
	if err != nil {
		return escrow.Ledger{}, fmt.Errorf("list participants: %w", err)
	}
	ledger := escrow.BuildLedger(camp, participants)
	if err := ledger.Reconcile(); err != nil {
		return escrow.Ledger{}, err
	}
	return ledger, nil
}

// Events returns the camp journal after afterSeq, up to limit entries.
func (s *Service) Events(ctx context.Context, campID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if _, err := s.GetCamp(ctx, campID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, campID, afterSeq, limit)
}

// loadCamp fetches a camp for a mutating operation.
func (s *Service) loadCamp(ctx context.Context, campID string) (domain.Camp, error) {
	return s.GetCamp(ctx, campID)
}

// appendEvents writes the operation's events to the journal as one atomic
// batch. A failure here aborts the operation before any projection is
// touched and journals nothing, so the caller can retry the whole operation
// safely.
func (s *Service) appendEvents(ctx context.Context, events []event.Event) error {
	if _, err := s.store.AppendEvents(ctx, events); err != nil {
		return errors.Wrap(errors.CodeLedgerUnavailable, "journal append failed", err)
	}
	return nil
}

// newEvent builds an event with the service clock and a JSON payload.
func (s *Service) newEvent(campID string, evtType event.Type, actorType event.ActorType, actorID, entityType, entityID string, payload any) (event.Event, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("encode %s payload: %w", evtType, err)
	}
	return event.Event{
		CampID:      campID,
		Timestamp:   s.clock().UTC(),
		Type:        evtType,
		ActorType:   actorType,
		ActorID:     actorID,
		EntityType:  entityType,
		EntityID:    entityID,
		PayloadJSON: encoded,
	}, nil
}
