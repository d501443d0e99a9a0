// Package credential generates and verifies level unlock secrets.
//
// Secrets are derived deterministically from an organizer-supplied seed with
// HKDF-SHA256, then committed as SHA-256(secret || salt) with a fresh random
// salt per scope. Only the commitment and salt are ever persisted; the secret
// is returned to the organizer exactly once at issuance.
package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/platform/errors"
	"github.com/louisbranch/summit.camp/internal/platform/random"
)

const (
	// SaltSize is the salt length in bytes (128 bits of entropy).
	SaltSize = 16
	// secretSize is the derived secret length in bytes before encoding.
	secretSize = 20
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Engine derives secrets and builds commitments. Randomness and time are
// injected capabilities so issuance is testable.
type Engine struct {
	random random.Source
	clock  func() time.Time
}

// NewEngine creates a credential engine with the given capabilities.
func NewEngine(source random.Source, clock func() time.Time) *Engine {
	if source == nil {
		source = random.CryptoSource{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Engine{random: source, clock: clock}
}

// DeriveSecret derives the shared secret for a camp level in basic mode.
// The derivation is deterministic from the seed: re-running it with the same
// inputs yields the same secret.
func DeriveSecret(seed, campID string, level int) (string, error) {
	return derive(seed, fmt.Sprintf("%s/level/%d", campID, level))
}

// DeriveParticipantSecret derives the per-participant secret for a camp
// level in advanced mode, keyed by the participant's join index.
func DeriveParticipantSecret(seed, campID string, level, participantIndex int) (string, error) {
	return derive(seed, fmt.Sprintf("%s/level/%d/participant/%d", campID, level, participantIndex))
}

func derive(seed, info string) (string, error) {
	if strings.TrimSpace(seed) == "" {
		return "", errors.New(errors.CodeCredentialEmptySeed, "credential seed is required")
	}
	reader := hkdf.New(sha256.New, []byte(seed), nil, []byte(info))
	secret := make([]byte, secretSize)
	if _, err := io.ReadFull(reader, secret); err != nil {
		return "", fmt.Errorf("derive secret: %w", err)
	}
	return strings.ToLower(secretEncoding.EncodeToString(secret)), nil
}

// NewSalt returns a fresh random salt for a commitment.
func (e *Engine) NewSalt() ([]byte, error) {
	salt, err := e.random.Bytes(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Commit computes the commitment for a secret: SHA-256(secret || salt).
func Commit(secret string, salt []byte) []byte {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write(salt)
	return h.Sum(nil)
}

// Matches recomputes the commitment for a claimed secret and compares it to
// the stored commitment in constant time.
func Matches(claimedSecret string, salt, commitment []byte) bool {
	recomputed := Commit(claimedSecret, salt)
	return subtle.ConstantTimeCompare(recomputed, commitment) == 1
}

// Issued is the one-time issuance result handed back to the organizer.
// The secret is not retained anywhere else.
type Issued struct {
	Level            int
	ParticipantScope identity.Address
	Secret           string
	Commitment       []byte
	Salt             []byte
}

// IssueShared builds the shared credential for a level in basic mode.
func (e *Engine) IssueShared(seed, campID string, level int, deadline time.Time) (Issued, domain.LevelCredential, error) {
	secret, err := DeriveSecret(seed, campID, level)
	if err != nil {
		return Issued{}, domain.LevelCredential{}, err
	}
	return e.build(campID, level, "", 0, secret, deadline)
}

// IssueForParticipant builds a per-participant credential for a level in
// advanced mode.
func (e *Engine) IssueForParticipant(seed, campID string, level int, participant domain.Participant, deadline time.Time) (Issued, domain.LevelCredential, error) {
	secret, err := DeriveParticipantSecret(seed, campID, level, participant.Index)
	if err != nil {
		return Issued{}, domain.LevelCredential{}, err
	}
	return e.build(campID, level, participant.Address, participant.Index, secret, deadline)
}

func (e *Engine) build(campID string, level int, scope identity.Address, index int, secret string, deadline time.Time) (Issued, domain.LevelCredential, error) {
	salt, err := e.NewSalt()
	if err != nil {
		return Issued{}, domain.LevelCredential{}, err
	}
	commitment := Commit(secret, salt)
	credential := domain.LevelCredential{
		CampID:           campID,
		Level:            level,
		ParticipantScope: scope,
		ParticipantIndex: index,
		Commitment:       commitment,
		Salt:             salt,
		Deadline:         deadline,
		IssuedAt:         e.clock().UTC(),
	}
	issued := Issued{
		Level:            level,
		ParticipantScope: scope,
		Secret:           secret,
		Commitment:       commitment,
		Salt:             salt,
	}
	return issued, credential, nil
}
