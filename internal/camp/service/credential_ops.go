package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/camp/event"
	"github.com/louisbranch/summit.camp/internal/credential"
	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/platform/errors"
	"github.com/louisbranch/summit.camp/internal/storage"
)

// IssueCredentialsInput describes one level's credential issuance.
type IssueCredentialsInput struct {
	CampID string
	Caller identity.Address
	Level  int
	// Seed is the organizer's derivation seed. It is consumed here and never
	// persisted.
	Seed string
	Mode domain.CredentialMode
	// Deadline optionally bounds when the level can still be verified.
	Deadline time.Time
}

// IssueCredentials derives and commits the secrets for one level. Basic mode
// issues a single shared secret; advanced mode issues one secret per enrolled
// participant. The returned secrets are handed to the organizer exactly once.
func (s *Service) IssueCredentials(ctx context.Context, input IssueCredentialsInput) ([]credential.Issued, error) {
	ctx, span := s.tracer.Start(ctx, "IssueCredentials")
	defer span.End()

	release := s.locks.acquire(input.CampID)
	defer release()

	camp, err := s.loadCamp(ctx, input.CampID)
	if err != nil {
		return nil, err
	}
	if !input.Caller.Equal(camp.Organizer) {
		return nil, errors.New(errors.CodeUnauthorized, "only the organizer can issue credentials")
	}
	if camp.State != domain.StateOpened && camp.State != domain.StateChallenge {
		return nil, errors.WithMetadata(errors.CodeInvalidState, "credentials can only be issued to an opened or running camp", map[string]string{
			"camp_id": camp.ID,
			"state":   string(camp.State),
		})
	}
	if !camp.LevelInBounds(input.Level) {
		return nil, errors.WithMetadata(errors.CodeCredentialLevelBounds, "level is out of bounds", map[string]string{
			"level": fmt.Sprintf("%d", input.Level),
			"total": fmt.Sprintf("%d", camp.TotalLevels),
		})
	}
	if err := camp.SetCredentialMode(input.Mode); err != nil {
		return nil, err
	}

	var issued []credential.Issued
	var credentials []domain.LevelCredential
	switch camp.CredentialMode {
	case domain.CredentialModeBasic:
		if _, err := s.store.GetCredential(ctx, camp.ID, input.Level, ""); err == nil {
			return nil, alreadyIssued(camp.ID, input.Level)
		} else if err != storage.ErrNotFound {
			return nil, fmt.Errorf("load credential: %w", err)
		}
		one, cred, err := s.engine.IssueShared(input.Seed, camp.ID, input.Level, input.Deadline)
		if err != nil {
			return nil, err
		}
		issued = append(issued, one)
		credentials = append(credentials, cred)
	case domain.CredentialModeAdvanced:
		participants, err := s.store.ListParticipants(ctx, camp.ID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		for _, participant := range participants {
			if _, err := s.store.GetCredential(ctx, camp.ID, input.Level, participant.Address); err == nil {
				return nil, alreadyIssued(camp.ID, input.Level)
			} else if err != storage.ErrNotFound {
				return nil, fmt.Errorf("load credential: %w", err)
			}
			one, cred, err := s.engine.IssueForParticipant(input.Seed, camp.ID, input.Level, participant, input.Deadline)
			if err != nil {
				return nil, err
			}
			issued = append(issued, one)
			credentials = append(credentials, cred)
		}
	}

	events := make([]event.Event, 0, len(credentials))
	for _, cred := range credentials {
		evt, err := s.newEvent(camp.ID, event.TypeCredentialIssued, event.ActorTypeOrganizer,
			input.Caller.String(), "credential", fmt.Sprintf("%d", cred.Level), event.CredentialIssuedPayload{
				Level:            cred.Level,
				Mode:             string(camp.CredentialMode),
				ParticipantScope: cred.ParticipantScope.String(),
				Commitment:       hex.EncodeToString(cred.Commitment),
			})
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := s.appendEvents(ctx, events); err != nil {
		return nil, err
	}
	for _, cred := range credentials {
		if err := s.store.PutCredential(ctx, cred); err != nil {
			return nil, fmt.Errorf("persist credential: %w", err)
		}
	}
	camp.UpdatedAt = s.clock().UTC()
	if err := s.store.PutCamp(ctx, camp); err != nil {
		return nil, fmt.Errorf("persist camp: %w", err)
	}
	return issued, nil
}

func alreadyIssued(campID string, level int) error {
	return errors.WithMetadata(errors.CodeAlreadyIssued, "level credential already issued", map[string]string{
		"camp_id": campID,
		"level":   fmt.Sprintf("%d", level),
	})
}

// VerifyCredential checks a claimed secret against the level's commitment.
// On an accepted match the level is marked complete and the participant's
// current level advances; the verification is journaled and idempotent. A
// mismatch changes nothing and may be retried.
func (s *Service) VerifyCredential(ctx context.Context, campID string, caller identity.Address, level int, secret string) (domain.VerificationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "VerifyCredential")
	defer span.End()

	release := s.locks.acquire(campID)
	defer release()

	camp, err := s.loadCamp(ctx, campID)
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	if camp.State != domain.StateChallenge {
		return domain.VerificationRecord{}, errors.WithMetadata(errors.CodeInvalidState, "camp is not running its challenge", map[string]string{
			"camp_id": campID,
			"state":   string(camp.State),
		})
	}
	if !camp.LevelInBounds(level) {
		return domain.VerificationRecord{}, errors.WithMetadata(errors.CodeCredentialLevelBounds, "level is out of bounds", map[string]string{
			"level": fmt.Sprintf("%d", level),
			"total": fmt.Sprintf("%d", camp.TotalLevels),
		})
	}
	participant, err := s.store.GetParticipant(ctx, campID, caller)
	if err == storage.ErrNotFound {
		return domain.VerificationRecord{}, errors.New(errors.CodeNotFound, "caller is not a camp participant")
	}
	if err != nil {
		return domain.VerificationRecord{}, fmt.Errorf("load participant: %w", err)
	}

	scope := identity.Address("")
	if camp.CredentialMode == domain.CredentialModeAdvanced {
		scope = caller
	}
	cred, err := s.store.GetCredential(ctx, campID, level, scope)
	if err == storage.ErrNotFound {
		return domain.VerificationRecord{}, errors.WithMetadata(errors.CodeCredentialNotProvisioned, "level credential is not provisioned", map[string]string{
			"camp_id": campID,
			"level":   fmt.Sprintf("%d", level),
		})
	}
	if err != nil {
		return domain.VerificationRecord{}, fmt.Errorf("load credential: %w", err)
	}
	now := s.clock().UTC()
	if cred.Expired(now) {
		return domain.VerificationRecord{}, errors.New(errors.CodeCredentialExpired, "level credential has expired")
	}
	if !credential.Matches(secret, cred.Salt, cred.Commitment) {
		return domain.VerificationRecord{}, errors.WithMetadata(errors.CodeInvalidCredential, "secret does not match the level commitment", map[string]string{
			"camp_id": campID,
			"level":   fmt.Sprintf("%d", level),
		})
	}

	// A correct secret for an already-complete level returns the prior
	// record without touching state.
	if participant.HasCompleted(level) {
		record, err := s.store.GetVerification(ctx, campID, level, caller)
		if err != nil && err != storage.ErrNotFound {
			return domain.VerificationRecord{}, fmt.Errorf("load verification: %w", err)
		}
		if err == nil {
			return record, nil
		}
		return domain.VerificationRecord{
			CampID:      campID,
			Level:       level,
			Participant: caller,
			VerifiedAt:  now,
			Result:      domain.VerificationAccepted,
		}, nil
	}

	participant.CompleteLevel(level)
	record := domain.VerificationRecord{
		CampID:      campID,
		Level:       level,
		Participant: caller,
		VerifiedAt:  now,
		Result:      domain.VerificationAccepted,
	}

	evt, err := s.newEvent(campID, event.TypeCredentialVerified, event.ActorTypeParticipant,
		caller.String(), "participant", caller.String(), event.CredentialVerifiedPayload{
			Level:        level,
			Participant:  caller.String(),
			CurrentLevel: participant.CurrentLevel,
		})
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	if err := s.appendEvents(ctx, []event.Event{evt}); err != nil {
		return domain.VerificationRecord{}, err
	}
	if err := s.store.PutParticipant(ctx, participant); err != nil {
		return domain.VerificationRecord{}, fmt.Errorf("persist participant: %w", err)
	}
	if err := s.store.PutVerification(ctx, record); err != nil {
		return domain.VerificationRecord{}, fmt.Errorf("persist verification: %w", err)
	}
	return record, nil
}
