package service

import (
	"context"
	"fmt"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/camp/event"
	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/platform/errors"
	"github.com/louisbranch/summit.camp/internal/progress"
	"github.com/louisbranch/summit.camp/internal/storage"
)

// RefundAll sweeps every locked deposit back to its owner on the Failed
// branch. The sweep runs at most once; a second call is a no-op.
func (s *Service) RefundAll(ctx context.Context, campID string) ([]domain.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "RefundAll")
	defer span.End()

	release := s.locks.acquire(campID)
	defer release()

	camp, err := s.loadCamp(ctx, campID)
	if err != nil {
		return nil, err
	}
	if camp.State != domain.StateFailed {
		return nil, errors.WithMetadata(errors.CodeInvalidState, "refund sweep requires a failed camp", map[string]string{
			"camp_id": campID,
			"state":   string(camp.State),
		})
	}
	if camp.RefundState == domain.RefundCompleted {
		return nil, nil
	}

	participants, err := s.store.ListParticipants(ctx, campID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	refunded := make([]domain.Participant, 0, len(participants))
	events := make([]event.Event, 0, len(participants)+1)
	for i := range participants {
		if err := participants[i].MarkRefunded(); err != nil {
			return nil, err
		}
		refunded = append(refunded, participants[i])
		evt, err := s.newEvent(campID, event.TypeDepositRefunded, event.ActorTypeSystem,
			"", "participant", participants[i].Address.String(), event.DepositRefundedPayload{
				Address: participants[i].Address.String(),
				Amount:  int64(camp.DepositAmount),
				Reason:  "camp_failed",
			})
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}

	done, err := s.newEvent(campID, event.TypeCampRefundCompleted, event.ActorTypeSystem,
		"", "camp", campID, event.CampRefundCompletedPayload{
			RefundedCount: len(refunded),
			TotalAmount:   int64(camp.DepositAmount) * int64(len(refunded)),
		})
	if err != nil {
		return nil, err
	}
	events = append(events, done)

	if err := s.appendEvents(ctx, events); err != nil {
		return nil, err
	}
	for _, participant := range refunded {
		if err := s.store.PutParticipant(ctx, participant); err != nil {
			return nil, fmt.Errorf("persist participant: %w", err)
		}
	}
	camp.RefundState = domain.RefundCompleted
	camp.UpdatedAt = s.clock().UTC()
	if err := s.store.PutCamp(ctx, camp); err != nil {
		return nil, fmt.Errorf("persist camp: %w", err)
	}
	return refunded, nil
}

// ClaimRefund returns the caller's deposit after a Completed camp. Only
// participants who completed every level are eligible, at most once.
func (s *Service) ClaimRefund(ctx context.Context, campID string, caller identity.Address) (domain.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "ClaimRefund")
	defer span.End()

	release := s.locks.acquire(campID)
	defer release()

	camp, err := s.loadCamp(ctx, campID)
	if err != nil {
		return domain.Participant{}, err
	}
	if camp.State != domain.StateCompleted {
		return domain.Participant{}, errors.WithMetadata(errors.CodeInvalidState, "refund claims require a completed camp", map[string]string{
			"camp_id": campID,
			"state":   string(camp.State),
		})
	}
	participant, err := s.store.GetParticipant(ctx, campID, caller)
	if err == storage.ErrNotFound {
		return domain.Participant{}, errors.New(errors.CodeNotFound, "caller is not a camp participant")
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("load participant: %w", err)
	}
	if !participant.FullyCompleted(camp.TotalLevels) {
		return domain.Participant{}, errors.WithMetadata(errors.CodeNotEligible, "refund requires completing every level", map[string]string{
			"camp_id":   campID,
			"address":   caller.String(),
			"completed": fmt.Sprintf("%d", participant.CompletedCount()),
			"total":     fmt.Sprintf("%d", camp.TotalLevels),
		})
	}
	if err := participant.MarkRefunded(); err != nil {
		return domain.Participant{}, err
	}

	evt, err := s.newEvent(campID, event.TypeDepositRefunded, event.ActorTypeParticipant,
		caller.String(), "participant", caller.String(), event.DepositRefundedPayload{
			Address: caller.String(),
			Amount:  int64(camp.DepositAmount),
			Reason:  "completion_claim",
		})
	if err != nil {
		return domain.Participant{}, err
	}
	if err := s.appendEvents(ctx, []event.Event{evt}); err != nil {
		return domain.Participant{}, err
	}
	if err := s.store.PutParticipant(ctx, participant); err != nil {
		return domain.Participant{}, fmt.Errorf("persist participant: %w", err)
	}
	return participant, nil
}

// ApplyPenalty forfeits the deposits of participants who did not complete
// every level of a Completed camp. Repeated sweeps are no-ops: a deposit is
// penalized at most once and refunded deposits are never touched.
func (s *Service) ApplyPenalty(ctx context.Context, campID string, caller identity.Address) ([]domain.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "ApplyPenalty")
	defer span.End()

	release := s.locks.acquire(campID)
	defer release()

	camp, err := s.loadCamp(ctx, campID)
	if err != nil {
		return nil, err
	}
	if !caller.Equal(camp.Organizer) {
		return nil, errors.New(errors.CodeUnauthorized, "only the organizer can apply penalties")
	}
	if camp.State != domain.StateCompleted {
		return nil, errors.WithMetadata(errors.CodeInvalidState, "penalties require a completed camp", map[string]string{
			"camp_id": campID,
			"state":   string(camp.State),
		})
	}

	participants, err := s.store.ListParticipants(ctx, campID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	_, failed := progress.Partition(participants, camp.TotalLevels)

	penalized := make([]domain.Participant, 0, len(failed))
	events := make([]event.Event, 0, len(failed))
	for i := range failed {
		if failed[i].Refunded || failed[i].Penalized {
			continue
		}
		if err := failed[i].MarkPenalized(); err != nil {
			return nil, err
		}
		penalized = append(penalized, failed[i])
		evt, err := s.newEvent(campID, event.TypeDepositPenalized, event.ActorTypeOrganizer,
			caller.String(), "participant", failed[i].Address.String(), event.DepositPenalizedPayload{
				Address:    failed[i].Address.String(),
				Amount:     int64(camp.DepositAmount),
				PoolPolicy: string(s.penaltyPolicy),
			})
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if len(penalized) == 0 {
		return nil, nil
	}

	if err := s.appendEvents(ctx, events); err != nil {
		return nil, err
	}
	for _, participant := range penalized {
		if err := s.store.PutParticipant(ctx, participant); err != nil {
			return nil, fmt.Errorf("persist participant: %w", err)
		}
	}
	return penalized, nil
}
