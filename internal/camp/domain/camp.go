// Package domain holds the pure camp aggregate: states, participants and
// credential records, with no storage or transport concerns.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/platform/errors"
	"github.com/louisbranch/summit.camp/internal/platform/id"
)

// Amount is a deposit value in fixed-point integer units (gwei scale).
// All escrow arithmetic stays in integers so refunds and penalties reconcile
// exactly against locked deposits.
type Amount int64

// String renders the amount with its unit suffix.
func (a Amount) String() string {
	return fmt.Sprintf("%d gwei", int64(a))
}

// CampState identifies a stage of the camp lifecycle.
type CampState string

const (
	// StateSignup accepts deposits until the signup deadline.
	StateSignup CampState = "signup"
	// StateFailed is the terminal branch taken when quorum is not reached.
	StateFailed CampState = "failed"
	// StateOpened means quorum was reached and the organizer may start levels.
	StateOpened CampState = "opened"
	// StateChallenge means levels are live and joins are frozen.
	StateChallenge CampState = "challenge"
	// StateCompleted is the terminal state after the challenge window closes.
	StateCompleted CampState = "completed"
)

// stateRank orders states so transitions can never move backward.
var stateRank = map[CampState]int{
	StateSignup:    0,
	StateFailed:    1,
	StateOpened:    1,
	StateChallenge: 2,
	StateCompleted: 3,
}

// validTransitions enumerates the only legal state edges.
var validTransitions = map[CampState][]CampState{
	StateSignup:    {StateFailed, StateOpened},
	StateOpened:    {StateChallenge},
	StateChallenge: {StateCompleted},
}

// Terminal reports whether no further transition is possible.
func (s CampState) Terminal() bool {
	return s == StateFailed || s == StateCompleted
}

// CanTransitionTo reports whether the edge from s to next is legal.
func (s CampState) CanTransitionTo(next CampState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RefundState tracks the camp-wide refund sweep on the Failed branch.
type RefundState string

const (
	// RefundPending means no refund sweep has run.
	RefundPending RefundState = "pending"
	// RefundCompleted means the sweep ran; a second sweep is a no-op.
	RefundCompleted RefundState = "completed"
)

// CredentialMode selects how level secrets are scoped. It is fixed for the
// camp's lifetime at first issuance.
type CredentialMode string

const (
	// CredentialModeUnset means no credential has been issued yet.
	CredentialModeUnset CredentialMode = ""
	// CredentialModeBasic issues one shared secret per level.
	CredentialModeBasic CredentialMode = "basic"
	// CredentialModeAdvanced issues one secret per level per participant.
	CredentialModeAdvanced CredentialMode = "advanced"
)

// Camp is the top-level challenge event aggregate. A camp owns its
// participants and level credentials; they never outlive it.
type Camp struct {
	ID             string
	Name           string
	Organizer      identity.Address
	DepositAmount  Amount
	MinParticipants int
	MaxParticipants int
	SignupDeadline time.Time
	CampStart      time.Time
	CampEnd        time.Time
	TotalLevels    int
	State          CampState
	RefundState    RefundState
	CredentialMode CredentialMode
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateCampInput describes the metadata needed to create a camp.
type CreateCampInput struct {
	Name            string
	Organizer       identity.Address
	DepositAmount   Amount
	MinParticipants int
	MaxParticipants int
	SignupDeadline  time.Time
	CampStart       time.Time
	CampEnd         time.Time
	TotalLevels     int
}

// CreateCamp creates a new camp in Signup with a generated ID and timestamps.
func CreateCamp(input CreateCampInput, now func() time.Time, idGenerator func() (string, error)) (Camp, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateCampInput(input)
	if err != nil {
		return Camp{}, err
	}

	campID, err := idGenerator()
	if err != nil {
		return Camp{}, fmt.Errorf("generate camp id: %w", err)
	}

	createdAt := now().UTC()
	return Camp{
		ID:              campID,
		Name:            normalized.Name,
		Organizer:       normalized.Organizer,
		DepositAmount:   normalized.DepositAmount,
		MinParticipants: normalized.MinParticipants,
		MaxParticipants: normalized.MaxParticipants,
		SignupDeadline:  normalized.SignupDeadline.UTC(),
		CampStart:       normalized.CampStart.UTC(),
		CampEnd:         normalized.CampEnd.UTC(),
		TotalLevels:     normalized.TotalLevels,
		State:           StateSignup,
		RefundState:     RefundPending,
		CredentialMode:  CredentialModeUnset,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}, nil
}

// NormalizeCreateCampInput trims and validates camp input metadata.
func NormalizeCreateCampInput(input CreateCampInput) (CreateCampInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateCampInput{}, errors.New(errors.CodeCampNameEmpty, "camp name is required")
	}
	if input.Organizer.IsZero() {
		return CreateCampInput{}, errors.New(errors.CodeCampOrganizerEmpty, "camp organizer is required")
	}
	if input.DepositAmount <= 0 {
		return CreateCampInput{}, errors.New(errors.CodeCampInvalidDeposit, "deposit amount must be positive")
	}
	if input.MinParticipants <= 0 || input.MinParticipants > input.MaxParticipants {
		return CreateCampInput{}, errors.WithMetadata(errors.CodeCampInvalidCapacity, "participant bounds are invalid", map[string]string{
			"min": fmt.Sprintf("%d", input.MinParticipants),
			"max": fmt.Sprintf("%d", input.MaxParticipants),
		})
	}
	if input.SignupDeadline.IsZero() || input.CampEnd.IsZero() || !input.SignupDeadline.Before(input.CampEnd) {
		return CreateCampInput{}, errors.New(errors.CodeCampInvalidSchedule, "signup deadline must precede camp end")
	}
	if !input.CampStart.IsZero() {
		if input.CampStart.Before(input.SignupDeadline) || !input.CampStart.Before(input.CampEnd) {
			return CreateCampInput{}, errors.New(errors.CodeCampInvalidSchedule, "camp start must fall between signup deadline and camp end")
		}
	}
	if input.TotalLevels <= 0 {
		return CreateCampInput{}, errors.New(errors.CodeCampInvalidLevelCount, "total levels must be positive")
	}
	return input, nil
}

// TransitionTo moves the camp to the next state, enforcing monotonicity.
func (c *Camp) TransitionTo(next CampState, now time.Time) error {
	if !c.State.CanTransitionTo(next) {
		return errors.WithMetadata(errors.CodeInvalidState, "illegal camp state transition", map[string]string{
			"camp_id": c.ID,
			"from":    string(c.State),
			"to":      string(next),
		})
	}
	if stateRank[next] < stateRank[c.State] {
		return errors.New(errors.CodeInvalidState, "camp state cannot move backward")
	}
	c.State = next
	c.UpdatedAt = now.UTC()
	return nil
}

// SetCredentialMode fixes the credential mode at first issuance.
// Once set, the mode cannot change for the camp's lifetime.
func (c *Camp) SetCredentialMode(mode CredentialMode) error {
	if mode != CredentialModeBasic && mode != CredentialModeAdvanced {
		return errors.New(errors.CodeCredentialModeFixed, "credential mode must be basic or advanced")
	}
	if c.CredentialMode == CredentialModeUnset {
		c.CredentialMode = mode
		return nil
	}
	if c.CredentialMode != mode {
		return errors.WithMetadata(errors.CodeCredentialModeFixed, "credential mode is fixed for the camp lifetime", map[string]string{
			"camp_id": c.ID,
			"mode":    string(c.CredentialMode),
		})
	}
	return nil
}

// LevelInBounds reports whether level addresses one of the camp's levels.
// Levels are numbered from 1 to TotalLevels.
func (c Camp) LevelInBounds(level int) bool {
	return level >= 1 && level <= c.TotalLevels
}
