// Package event defines the append-only camp event journal.
//
// Events are facts that have occurred, not commands. Storage assigns the
// sequence number and content hash on append; the journal is the durable
// ledger the rest of the engine projects from.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Type identifies the type of a camp event.
type Type string

// Camp lifecycle events.
const (
	// TypeCampCreated records the creation of a camp.
	TypeCampCreated Type = "camp.created"
	// TypeCampStatusChanged records a camp state transition.
	TypeCampStatusChanged Type = "camp.status_changed"
	// TypeCampRefundCompleted records the completion of a camp-wide refund sweep.
	TypeCampRefundCompleted Type = "camp.refund_completed"
)

// Participant and escrow events.
const (
	// TypeParticipantJoined records a participant joining a camp.
	TypeParticipantJoined Type = "participant.joined"
	// TypeDepositLocked records a deposit entering escrow.
	TypeDepositLocked Type = "deposit.locked"
	// TypeDepositRefunded records a deposit returned to its owner.
	TypeDepositRefunded Type = "deposit.refunded"
	// TypeDepositPenalized records a deposit forfeited to the penalty pool.
	TypeDepositPenalized Type = "deposit.penalized"
)

// Credential events.
const (
	// TypeCredentialIssued records the issuance of a level commitment.
	TypeCredentialIssued Type = "credential.issued"
	// TypeCredentialVerified records an accepted secret verification.
	TypeCredentialVerified Type = "credential.verified"
)

// ActorType identifies who or what triggered an event.
type ActorType string

const (
	// ActorTypeSystem indicates the event was triggered by the system.
	ActorTypeSystem ActorType = "system"
	// ActorTypeParticipant indicates the event was triggered by a participant.
	ActorTypeParticipant ActorType = "participant"
	// ActorTypeOrganizer indicates the event was triggered by the organizer.
	ActorTypeOrganizer ActorType = "organizer"
)

// Event represents an immutable event in the camp journal.
type Event struct {
	// CampID is the camp this event belongs to.
	CampID string
	// Seq is the event sequence number within the camp (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Hash is the content-addressed identity (SHA-256 truncated to 128-bit).
	// Assigned by storage on append.
	Hash string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// ActorType identifies who triggered the event.
	ActorType ActorType
	// ActorID is the caller address when the actor is a participant or organizer.
	ActorID string
	// EntityType is the type of entity affected (participant, credential, camp).
	EntityType string
	// EntityID is the ID of the entity affected.
	EntityID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "camp", "deposit").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// ContentHash computes the content-addressed identity of an event: SHA-256
// over the identifying fields, truncated to 128 bits and hex encoded.
func ContentHash(evt Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%s|%s|%s|%s|%s|",
		evt.CampID,
		evt.Seq,
		evt.Timestamp.UTC().UnixMilli(),
		evt.Type,
		evt.ActorType,
		evt.ActorID,
		evt.EntityType,
		evt.EntityID,
	)
	h.Write(evt.PayloadJSON)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
