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

// CreateCamp creates a new camp in Signup and journals its creation.
func (s *Service) CreateCamp(ctx context.Context, input domain.CreateCampInput) (domain.Camp, error) {
	ctx, span := s.tracer.Start(ctx, "CreateCamp")
	defer span.End()

	camp, err := domain.CreateCamp(input, s.clock, s.idGenerator)
	if err != nil {
		return domain.Camp{}, err
	}

	created, err := s.newEvent(camp.ID, event.TypeCampCreated, event.ActorTypeOrganizer,
		camp.Organizer.String(), "camp", camp.ID, event.CampCreatedPayload{
			Name:            camp.Name,
			Organizer:       camp.Organizer.String(),
			DepositAmount:   int64(camp.DepositAmount),
			MinParticipants: camp.MinParticipants,
			MaxParticipants: camp.MaxParticipants,
			SignupDeadline:  camp.SignupDeadline.UnixMilli(),
			CampEnd:         camp.CampEnd.UnixMilli(),
			TotalLevels:     camp.TotalLevels,
		})
	if err != nil {
		return domain.Camp{}, err
	}
	if err := s.appendEvents(ctx, []event.Event{created}); err != nil {
		return domain.Camp{}, err
	}
	if err := s.store.PutCamp(ctx, camp); err != nil {
		return domain.Camp{}, fmt.Errorf("persist camp: %w", err)
	}
	return camp, nil
}

// JoinCamp enrolls the caller and locks their deposit. Joins are accepted in
// Signup until the deadline, bounded by capacity, and at most once per wallet.
func (s *Service) JoinCamp(ctx context.Context, campID string, caller identity.Address) (domain.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "JoinCamp")
	defer span.End()

	release := s.locks.acquire(campID)
	defer release()

	camp, err := s.loadCamp(ctx, campID)
	if err != nil {
		return domain.Participant{}, err
	}
	if camp.State != domain.StateSignup {
		return domain.Participant{}, errors.WithMetadata(errors.CodeInvalidState, "camp is not accepting signups", map[string]string{
			"camp_id": campID,
			"state":   string(camp.State),
		})
	}
	now := s.clock().UTC()
	// Joins close at the deadline instant, the same instant evaluation opens.
	if !now.Before(camp.SignupDeadline) {
		return domain.Participant{}, errors.New(errors.CodeInvalidState, "signup deadline has passed")
	}
	if caller.Equal(camp.Organizer) {
		return domain.Participant{}, errors.New(errors.CodeOrganizerCannotJoin, "organizer cannot join their own camp")
	}
	if _, err := s.store.GetParticipant(ctx, campID, caller); err == nil {
		return domain.Participant{}, errors.WithMetadata(errors.CodeDuplicateParticipant, "wallet already joined this camp", map[string]string{
			"camp_id": campID,
			"address": caller.String(),
		})
	} else if err != storage.ErrNotFound {
		return domain.Participant{}, fmt.Errorf("load participant: %w", err)
	}

	count, err := s.store.CountParticipants(ctx, campID)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("count participants: %w", err)
	}
	if count >= camp.MaxParticipants {
		return domain.Participant{}, errors.WithMetadata(errors.CodeCampFull, "camp is at capacity", map[string]string{
			"camp_id": campID,
			"max":     fmt.Sprintf("%d", camp.MaxParticipants),
		})
	}

	balance, err := s.balances.Balance(ctx, caller)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("check balance: %w", err)
	}
	if balance < camp.DepositAmount {
		return domain.Participant{}, errors.WithMetadata(errors.CodeInsufficientFunds, "wallet cannot cover the deposit", map[string]string{
			"deposit": camp.DepositAmount.String(),
			"balance": balance.String(),
		})
	}

	participant := domain.NewParticipant(campID, caller, count+1, now)

	joined, err := s.newEvent(campID, event.TypeParticipantJoined, event.ActorTypeParticipant,
		caller.String(), "participant", caller.String(), event.ParticipantJoinedPayload{
			Address: caller.String(),
			Index:   participant.Index,
		})
	if err != nil {
		return domain.Participant{}, err
	}
	locked, err := s.newEvent(campID, event.TypeDepositLocked, event.ActorTypeParticipant,
		caller.String(), "participant", caller.String(), event.DepositLockedPayload{
			Address: caller.String(),
			Amount:  int64(camp.DepositAmount),
		})
	if err != nil {
		return domain.Participant{}, err
	}
	if err := s.appendEvents(ctx, []event.Event{joined, locked}); err != nil {
		return domain.Participant{}, err
	}
	if err := s.store.PutParticipant(ctx, participant); err != nil {
		return domain.Participant{}, fmt.Errorf("persist participant: %w", err)
	}
	return participant, nil
}

// EvaluateSignupClose branches the camp out of Signup once the deadline has
// passed: Opened when quorum was reached, Failed otherwise. Calling it again
// after the branch is a no-op that returns the settled camp.
func (s *Service) EvaluateSignupClose(ctx context.Context, campID string) (domain.Camp, error) {
	ctx, span := s.tracer.Start(ctx, "EvaluateSignupClose")
	defer span.End()

	release := s.locks.acquire(campID)
	defer release()

	camp, err := s.loadCamp(ctx, campID)
	if err != nil {
		return domain.Camp{}, err
	}
	if camp.State != domain.StateSignup {
		// Already branched; evaluation is idempotent.
		return camp, nil
	}
	now := s.clock().UTC()
	if now.Before(camp.SignupDeadline) {
		return domain.Camp{}, errors.WithMetadata(errors.CodePrematureEvaluation, "signup deadline has not passed", map[string]string{
			"camp_id":  campID,
			"deadline": camp.SignupDeadline.String(),
		})
	}

	count, err := s.store.CountParticipants(ctx, campID)
	if err != nil {
		return domain.Camp{}, fmt.Errorf("count participants: %w", err)
	}
	next := domain.StateFailed
	if count >= camp.MinParticipants {
		next = domain.StateOpened
	}
	from := camp.State
	if err := camp.TransitionTo(next, now); err != nil {
		return domain.Camp{}, err
	}

	changed, err := s.newEvent(campID, event.TypeCampStatusChanged, event.ActorTypeSystem,
		"", "camp", campID, event.CampStatusChangedPayload{
			FromState:        string(from),
			ToState:          string(next),
			ParticipantCount: count,
		})
	if err != nil {
		return domain.Camp{}, err
	}
	if err := s.appendEvents(ctx, []event.Event{changed}); err != nil {
		return domain.Camp{}, err
	}
	if err := s.store.PutCamp(ctx, camp); err != nil {
		return domain.Camp{}, fmt.Errorf("persist camp: %w", err)
	}
	return camp, nil
}

// StartChallenge moves an Opened camp into Challenge. Only the organizer may
// start the challenge, and the first level's credential must be provisioned.
func (s *Service) StartChallenge(ctx context.Context, campID string, caller identity.Address) (domain.Camp, error) {
	ctx, span := s.tracer.Start(ctx, "StartChallenge")
	defer span.End()

	release := s.locks.acquire(campID)
	defer release()

	camp, err := s.loadCamp(ctx, campID)
	if err != nil {
		return domain.Camp{}, err
	}
	if !caller.Equal(camp.Organizer) {
		return domain.Camp{}, errors.New(errors.CodeUnauthorized, "only the organizer can start the challenge")
	}
	if camp.State != domain.StateOpened {
		return domain.Camp{}, errors.WithMetadata(errors.CodeInvalidState, "camp is not opened", map[string]string{
			"camp_id": campID,
			"state":   string(camp.State),
		})
	}
	now := s.clock().UTC()
	if !camp.CampStart.IsZero() && now.Before(camp.CampStart) {
		return domain.Camp{}, errors.New(errors.CodeInvalidState, "camp has not reached its start time")
	}
	if err := s.ensureLevelProvisioned(ctx, camp, 1); err != nil {
		return domain.Camp{}, err
	}

	from := camp.State
	if err := camp.TransitionTo(domain.StateChallenge, now); err != nil {
		return domain.Camp{}, err
	}
	changed, err := s.newEvent(campID, event.TypeCampStatusChanged, event.ActorTypeOrganizer,
		caller.String(), "camp", campID, event.CampStatusChangedPayload{
			FromState: string(from),
			ToState:   string(camp.State),
		})
	if err != nil {
		return domain.Camp{}, err
	}
	if err := s.appendEvents(ctx, []event.Event{changed}); err != nil {
		return domain.Camp{}, err
	}
	if err := s.store.PutCamp(ctx, camp); err != nil {
		return domain.Camp{}, fmt.Errorf("persist camp: %w", err)
	}
	return camp, nil
}

// ensureLevelProvisioned verifies a level has commitments for the camp's
// credential mode: one shared commitment in basic mode, one per participant
// in advanced mode.
func (s *Service) ensureLevelProvisioned(ctx context.Context, camp domain.Camp, level int) error {
	missing := errors.WithMetadata(errors.CodeCredentialNotProvisioned, "level credential is not provisioned", map[string]string{
		"camp_id": camp.ID,
		"level":   fmt.Sprintf("%d", level),
	})
	switch camp.CredentialMode {
	case domain.CredentialModeBasic:
		if _, err := s.store.GetCredential(ctx, camp.ID, level, ""); err != nil {
			if err == storage.ErrNotFound {
				return missing
			}
			return fmt.Errorf("load credential: %w", err)
		}
		return nil
	case domain.CredentialModeAdvanced:
		participants, err := s.store.ListParticipants(ctx, camp.ID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		for _, participant := range participants {
			if _, err := s.store.GetCredential(ctx, camp.ID, level, participant.Address); err != nil {
				if err == storage.ErrNotFound {
					return missing
				}
				return fmt.Errorf("load credential: %w", err)
			}
		}
		return nil
	default:
		return missing
	}
}

// CloseCamp moves a Challenge camp to Completed. The camp closes when its end
// time has passed, or early once every participant has exhausted every level.
func (s *Service) CloseCamp(ctx context.Context, campID string) (domain.Camp, error) {
	ctx, span := s.tracer.Start(ctx, "CloseCamp")
	defer span.End()

	release := s.locks.acquire(campID)
	defer release()

	camp, err := s.loadCamp(ctx, campID)
	if err != nil {
		return domain.Camp{}, err
	}
	if camp.State == domain.StateCompleted {
		return camp, nil
	}
	if camp.State != domain.StateChallenge {
		return domain.Camp{}, errors.WithMetadata(errors.CodeInvalidState, "camp is not in challenge", map[string]string{
			"camp_id": campID,
			"state":   string(camp.State),
		})
	}
	participants, err := s.store.ListParticipants(ctx, campID)
	if err != nil {
		return domain.Camp{}, fmt.Errorf("list participants: %w", err)
	}
	now := s.clock().UTC()
	if now.Before(camp.CampEnd) && !progress.AllLevelsExhausted(participants, camp.TotalLevels) {
		return domain.Camp{}, errors.New(errors.CodeInvalidState, "challenge window is still open")
	}

	completed, failed := progress.Partition(participants, camp.TotalLevels)
	from := camp.State
	if err := camp.TransitionTo(domain.StateCompleted, now); err != nil {
		return domain.Camp{}, err
	}
	changed, err := s.newEvent(campID, event.TypeCampStatusChanged, event.ActorTypeSystem,
		"", "camp", campID, event.CampStatusChangedPayload{
			FromState:      string(from),
			ToState:        string(camp.State),
			CompletedCount: len(completed),
			FailedCount:    len(failed),
		})
	if err != nil {
		return domain.Camp{}, err
	}
	if err := s.appendEvents(ctx, []event.Event{changed}); err != nil {
		return domain.Camp{}, err
	}
	if err := s.store.PutCamp(ctx, camp); err != nil {
		return domain.Camp{}, fmt.Errorf("persist camp: %w", err)
	}
	return camp, nil
}
