package sqlite

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/camp/event"
	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func testCamp() domain.Camp {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Camp{
		ID:              "camp123",
		Name:            "Spring Summit",
		Organizer:       "0x1111111111111111111111111111111111111111",
		DepositAmount:   1000,
		MinParticipants: 10,
		MaxParticipants: 12,
		SignupDeadline:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		CampEnd:         time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		TotalLevels:     3,
		State:           domain.StateSignup,
		RefundState:     domain.RefundPending,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func TestCampRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	camp := testCamp()

	if err := store.PutCamp(ctx, camp); err != nil {
		t.Fatalf("put camp: %v", err)
	}
	got, err := store.GetCamp(ctx, camp.ID)
	if err != nil {
		t.Fatalf("get camp: %v", err)
	}
	if got != camp {
		t.Fatalf("camp round trip mismatch:\n got %+v\nwant %+v", got, camp)
	}
	if !got.CampStart.IsZero() {
		t.Fatal("expected zero camp start to survive the round trip")
	}

	// Updates replace the mutable columns.
	camp.State = domain.StateOpened
	camp.CredentialMode = domain.CredentialModeBasic
	camp.UpdatedAt = camp.UpdatedAt.Add(time.Hour)
	if err := store.PutCamp(ctx, camp); err != nil {
		t.Fatalf("update camp: %v", err)
	}
	got, err = store.GetCamp(ctx, camp.ID)
	if err != nil {
		t.Fatalf("get updated camp: %v", err)
	}
	if got.State != domain.StateOpened || got.CredentialMode != domain.CredentialModeBasic {
		t.Fatalf("expected updated state and mode, got %+v", got)
	}

	if _, err := store.GetCamp(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParticipantRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutCamp(ctx, testCamp()); err != nil {
		t.Fatalf("put camp: %v", err)
	}

	addr := identity.Address("0x2222222222222222222222222222222222222222")
	participant := domain.NewParticipant("camp123", addr, 1, time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC))
	participant.CompleteLevel(1)
	participant.CompleteLevel(3)

	if err := store.PutParticipant(ctx, participant); err != nil {
		t.Fatalf("put participant: %v", err)
	}
	got, err := store.GetParticipant(ctx, "camp123", addr)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if got.CurrentLevel != 2 || got.CompletedCount() != 2 {
		t.Fatalf("expected level 2 with 2 completions, got %+v", got)
	}
	if !got.HasCompleted(1) || !got.HasCompleted(3) || got.HasCompleted(2) {
		t.Fatalf("completed level set mismatch: %v", got.CompletedLevelList())
	}

	count, err := store.CountParticipants(ctx, "camp123")
	if err != nil || count != 1 {
		t.Fatalf("expected 1 participant, got %d err %v", count, err)
	}
}

func TestListParticipantsOrderedByJoinIndex(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutCamp(ctx, testCamp()); err != nil {
		t.Fatalf("put camp: %v", err)
	}

	joined := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	addrs := []identity.Address{
		"0x2222222222222222222222222222222222222223",
		"0x2222222222222222222222222222222222222221",
		"0x2222222222222222222222222222222222222222",
	}
	for i, addr := range addrs {
		p := domain.NewParticipant("camp123", addr, 3-i, joined)
		if err := store.PutParticipant(ctx, p); err != nil {
			t.Fatalf("put participant %d: %v", i, err)
		}
	}

	participants, err := store.ListParticipants(ctx, "camp123")
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(participants))
	}
	for i, p := range participants {
		if p.Index != i+1 {
			t.Fatalf("expected join order, got index %d at position %d", p.Index, i)
		}
	}
}

func TestCredentialAppendOnly(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutCamp(ctx, testCamp()); err != nil {
		t.Fatalf("put camp: %v", err)
	}

	credential := domain.LevelCredential{
		CampID:     "camp123",
		Level:      1,
		Commitment: []byte{0xAA, 0xBB},
		Salt:       []byte{0x01, 0x02},
		IssuedAt:   time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := store.PutCredential(ctx, credential); err != nil {
		t.Fatalf("put credential: %v", err)
	}
	if err := store.PutCredential(ctx, credential); err == nil {
		t.Fatal("expected second commitment for the same scope to be rejected")
	}

	got, err := store.GetCredential(ctx, "camp123", 1, "")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if !bytes.Equal(got.Commitment, credential.Commitment) || !bytes.Equal(got.Salt, credential.Salt) {
		t.Fatal("commitment round trip mismatch")
	}
	if !got.Shared() {
		t.Fatal("expected shared scope")
	}
	if !got.Deadline.IsZero() {
		t.Fatal("expected zero deadline to survive the round trip")
	}

	// A different scope for the same level is a distinct commitment.
	credential.ParticipantScope = "0x2222222222222222222222222222222222222222"
	credential.ParticipantIndex = 1
	if err := store.PutCredential(ctx, credential); err != nil {
		t.Fatalf("put scoped credential: %v", err)
	}
	credentials, err := store.ListCredentials(ctx, "camp123")
	if err != nil || len(credentials) != 2 {
		t.Fatalf("expected 2 credentials, got %d err %v", len(credentials), err)
	}
}

func TestVerificationRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutCamp(ctx, testCamp()); err != nil {
		t.Fatalf("put camp: %v", err)
	}

	record := domain.VerificationRecord{
		CampID:      "camp123",
		Level:       1,
		Participant: "0x2222222222222222222222222222222222222222",
		VerifiedAt:  time.Date(2026, 4, 3, 10, 0, 0, 0, time.UTC),
		Result:      domain.VerificationAccepted,
	}
	if err := store.PutVerification(ctx, record); err != nil {
		t.Fatalf("put verification: %v", err)
	}
	got, err := store.GetVerification(ctx, "camp123", 1, record.Participant)
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if got != record {
		t.Fatalf("verification round trip mismatch:\n got %+v\nwant %+v", got, record)
	}
	if _, err := store.GetVerification(ctx, "camp123", 2, record.Participant); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for unverified level, got %v", err)
	}
}

func TestAppendEventAssignsSeqAndHash(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.AppendEvent(ctx, event.Event{
		CampID:    "camp123",
		Type:      event.TypeCampCreated,
		ActorType: event.ActorTypeOrganizer,
		ActorID:   "0x1111111111111111111111111111111111111111",
	})
	if err != nil {
		t.Fatalf("append first event: %v", err)
	}
	if first.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", first.Seq)
	}
	if first.Hash == "" || len(first.Hash) != 32 {
		t.Fatalf("expected 128-bit hex hash, got %q", first.Hash)
	}

	second, err := store.AppendEvent(ctx, event.Event{
		CampID:    "camp123",
		Type:      event.TypeParticipantJoined,
		ActorType: event.ActorTypeParticipant,
	})
	if err != nil {
		t.Fatalf("append second event: %v", err)
	}
	if second.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", second.Seq)
	}

	// Sequences are per camp.
	other, err := store.AppendEvent(ctx, event.Event{CampID: "camp456", Type: event.TypeCampCreated, ActorType: event.ActorTypeSystem})
	if err != nil {
		t.Fatalf("append other camp event: %v", err)
	}
	if other.Seq != 1 {
		t.Fatalf("expected independent sequence per camp, got %d", other.Seq)
	}

	events, err := store.ListEvents(ctx, "camp123", 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("expected ordered journal, got %+v", events)
	}

	tail, err := store.ListEvents(ctx, "camp123", 1, 10)
	if err != nil || len(tail) != 1 || tail[0].Seq != 2 {
		t.Fatalf("expected tail after seq 1, got %+v err %v", tail, err)
	}
}

func TestAppendEventsBatchIsContiguous(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, event.Event{CampID: "camp123", Type: event.TypeCampCreated, ActorType: event.ActorTypeOrganizer}); err != nil {
		t.Fatalf("append creation: %v", err)
	}

	batch, err := store.AppendEvents(ctx, []event.Event{
		{CampID: "camp123", Type: event.TypeParticipantJoined, ActorType: event.ActorTypeParticipant},
		{CampID: "camp123", Type: event.TypeDepositLocked, ActorType: event.ActorTypeParticipant},
	})
	if err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if len(batch) != 2 || batch[0].Seq != 2 || batch[1].Seq != 3 {
		t.Fatalf("expected contiguous seqs 2 and 3, got %+v", batch)
	}
	for _, evt := range batch {
		if len(evt.Hash) != 32 {
			t.Fatalf("expected assigned hash, got %+v", evt)
		}
	}

	events, err := store.ListEvents(ctx, "camp123", 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 journaled events, got %d", len(events))
	}
}
