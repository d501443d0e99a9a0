package credential

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/identity"
	platformerrors "github.com/louisbranch/summit.camp/internal/platform/errors"
)

// fixedSource returns a repeating byte pattern, so salts are deterministic.
type fixedSource struct {
	value byte
}

func (f fixedSource) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = f.value
	}
	return buf, nil
}

func testEngine() *Engine {
	fixedTime := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return NewEngine(fixedSource{value: 0xA5}, func() time.Time { return fixedTime })
}

func TestDeriveSecretDeterministic(t *testing.T) {
	first, err := DeriveSecret("base-seed", "camp123", 1)
	if err != nil {
		t.Fatalf("derive secret: %v", err)
	}
	second, err := DeriveSecret("base-seed", "camp123", 1)
	if err != nil {
		t.Fatalf("derive secret: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic derivation, got %q and %q", first, second)
	}
	if first == "" {
		t.Fatal("expected non-empty secret")
	}
}

func TestDeriveSecretDistinctPerScope(t *testing.T) {
	level1, err := DeriveSecret("base-seed", "camp123", 1)
	if err != nil {
		t.Fatalf("derive level 1: %v", err)
	}
	level2, err := DeriveSecret("base-seed", "camp123", 2)
	if err != nil {
		t.Fatalf("derive level 2: %v", err)
	}
	if level1 == level2 {
		t.Fatal("expected distinct secrets per level")
	}

	otherCamp, err := DeriveSecret("base-seed", "camp456", 1)
	if err != nil {
		t.Fatalf("derive other camp: %v", err)
	}
	if level1 == otherCamp {
		t.Fatal("expected distinct secrets per camp")
	}

	p1, err := DeriveParticipantSecret("base-seed", "camp123", 1, 1)
	if err != nil {
		t.Fatalf("derive participant 1: %v", err)
	}
	p2, err := DeriveParticipantSecret("base-seed", "camp123", 1, 2)
	if err != nil {
		t.Fatalf("derive participant 2: %v", err)
	}
	if p1 == p2 {
		t.Fatal("expected distinct secrets per participant")
	}
	if p1 == level1 {
		t.Fatal("expected participant secret to differ from shared secret")
	}
}

func TestDeriveSecretRequiresSeed(t *testing.T) {
	if _, err := DeriveSecret("   ", "camp123", 1); !errors.Is(err, platformerrors.New(platformerrors.CodeCredentialEmptySeed, "")) {
		t.Fatalf("expected empty seed error, got %v", err)
	}
}

func TestCommitAndMatches(t *testing.T) {
	salt := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	commitment := Commit("secret-value", salt)

	if !Matches("secret-value", salt, commitment) {
		t.Fatal("expected correct secret to match commitment")
	}
	if Matches("wrong-value", salt, commitment) {
		t.Fatal("expected wrong secret to be rejected")
	}
	if Matches("secret-value", []byte{0xFF}, commitment) {
		t.Fatal("expected wrong salt to be rejected")
	}
}

func TestIssueSharedBuildsCredential(t *testing.T) {
	engine := testEngine()

	issued, credential, err := engine.IssueShared("base-seed", "camp123", 3, time.Time{})
	if err != nil {
		t.Fatalf("issue shared: %v", err)
	}

	if issued.Level != 3 || credential.Level != 3 {
		t.Fatalf("expected level 3, got issued=%d credential=%d", issued.Level, credential.Level)
	}
	if !credential.Shared() {
		t.Fatal("expected shared credential scope")
	}
	if len(credential.Salt) != SaltSize {
		t.Fatalf("expected %d-byte salt, got %d", SaltSize, len(credential.Salt))
	}
	if !bytes.Equal(issued.Commitment, credential.Commitment) {
		t.Fatal("expected issued commitment to match persisted commitment")
	}
	if !Matches(issued.Secret, credential.Salt, credential.Commitment) {
		t.Fatal("expected issued secret to verify against commitment")
	}
	if credential.Expired(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("expected zero deadline to mean no expiry")
	}
}

func TestIssueForParticipantScopesCredential(t *testing.T) {
	engine := testEngine()
	addr := identity.Address("0xabc0000000000000000000000000000000000001")
	participant := domain.NewParticipant("camp123", addr, 2, time.Now())

	issued, credential, err := engine.IssueForParticipant("base-seed", "camp123", 1, participant, time.Time{})
	if err != nil {
		t.Fatalf("issue for participant: %v", err)
	}
	if credential.Shared() {
		t.Fatal("expected participant-scoped credential")
	}
	if credential.ParticipantScope != addr {
		t.Fatalf("expected scope %s, got %s", addr, credential.ParticipantScope)
	}
	if credential.ParticipantIndex != 2 {
		t.Fatalf("expected participant index 2, got %d", credential.ParticipantIndex)
	}
	if !Matches(issued.Secret, credential.Salt, credential.Commitment) {
		t.Fatal("expected issued secret to verify against commitment")
	}
}

func TestCrossParticipantSecretRejected(t *testing.T) {
	engine := testEngine()
	addrA := identity.Address("0xabc0000000000000000000000000000000000001")
	addrB := identity.Address("0xabc0000000000000000000000000000000000002")
	participantA := domain.NewParticipant("camp123", addrA, 1, time.Now())
	participantB := domain.NewParticipant("camp123", addrB, 2, time.Now())

	issuedA, _, err := engine.IssueForParticipant("base-seed", "camp123", 1, participantA, time.Time{})
	if err != nil {
		t.Fatalf("issue for participant A: %v", err)
	}
	_, credentialB, err := engine.IssueForParticipant("base-seed", "camp123", 1, participantB, time.Time{})
	if err != nil {
		t.Fatalf("issue for participant B: %v", err)
	}

	if Matches(issuedA.Secret, credentialB.Salt, credentialB.Commitment) {
		t.Fatal("expected participant A's secret to fail against participant B's commitment")
	}
}

func TestCredentialDeadline(t *testing.T) {
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	credential := domain.LevelCredential{Deadline: deadline}

	if credential.Expired(deadline.Add(-time.Hour)) {
		t.Fatal("expected credential to be live before its deadline")
	}
	if !credential.Expired(deadline.Add(time.Hour)) {
		t.Fatal("expected credential to expire after its deadline")
	}
}
