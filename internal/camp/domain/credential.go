package domain

import (
	"time"

	"github.com/louisbranch/summit.camp/internal/identity"
)

// LevelCredential stores the verifiable commitment for a level secret.
//
// The secret itself is never persisted: it is returned to the organizer
// exactly once at issuance. Commitments are immutable once written.
type LevelCredential struct {
	CampID string
	Level  int
	// ParticipantScope is empty in basic mode (shared secret) and holds the
	// target participant's address in advanced mode.
	ParticipantScope identity.Address
	// ParticipantIndex mirrors the scoped participant's join index in
	// advanced mode; zero in basic mode.
	ParticipantIndex int
	Commitment       []byte
	Salt             []byte
	// Deadline optionally bounds when the level can still be verified.
	// Zero means no expiry, the configured default.
	Deadline time.Time
	IssuedAt time.Time
}

// Shared reports whether the credential is shared by all participants.
func (c LevelCredential) Shared() bool {
	return c.ParticipantScope.IsZero()
}

// Expired reports whether the credential's deadline has passed.
func (c LevelCredential) Expired(now time.Time) bool {
	return !c.Deadline.IsZero() && now.After(c.Deadline)
}

// VerificationResult classifies the outcome of a verification attempt.
type VerificationResult string

const (
	// VerificationAccepted means the claimed secret matched the commitment.
	VerificationAccepted VerificationResult = "accepted"
	// VerificationRejected means the claimed secret did not match.
	VerificationRejected VerificationResult = "rejected"
)

// VerificationRecord is the append-only trace of accepted verifications.
// A repeated submission of an already-accepted secret returns the prior
// record instead of re-triggering state changes.
type VerificationRecord struct {
	CampID      string
	Level       int
	Participant identity.Address
	VerifiedAt  time.Time
	Result      VerificationResult
}
