package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/summit.camp/internal/identity"
	platformerrors "github.com/louisbranch/summit.camp/internal/platform/errors"
)

var (
	testOrganizer = identity.Address("0x1111111111111111111111111111111111111111")
	testClock     = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
)

func validInput() CreateCampInput {
	return CreateCampInput{
		Name:            "Spring Summit",
		Organizer:       testOrganizer,
		DepositAmount:   1000,
		MinParticipants: 10,
		MaxParticipants: 12,
		SignupDeadline:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		CampStart:       time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		CampEnd:         time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		TotalLevels:     3,
	}
}

func TestCreateCamp(t *testing.T) {
	camp, err := CreateCamp(validInput(), testClock, func() (string, error) { return "camp123", nil })
	if err != nil {
		t.Fatalf("create camp: %v", err)
	}
	if camp.ID != "camp123" {
		t.Fatalf("expected generated id, got %q", camp.ID)
	}
	if camp.State != StateSignup {
		t.Fatalf("expected new camp in signup, got %q", camp.State)
	}
	if camp.RefundState != RefundPending {
		t.Fatalf("expected pending refund state, got %q", camp.RefundState)
	}
	if camp.CredentialMode != CredentialModeUnset {
		t.Fatalf("expected unset credential mode, got %q", camp.CredentialMode)
	}
	if !camp.CreatedAt.Equal(testClock()) || !camp.UpdatedAt.Equal(testClock()) {
		t.Fatalf("expected timestamps from clock, got created=%v updated=%v", camp.CreatedAt, camp.UpdatedAt)
	}
}

func TestCreateCampValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*CreateCampInput)
		want    platformerrors.Code
	}{
		{"empty name", func(in *CreateCampInput) { in.Name = "   " }, platformerrors.CodeCampNameEmpty},
		{"missing organizer", func(in *CreateCampInput) { in.Organizer = "" }, platformerrors.CodeCampOrganizerEmpty},
		{"zero deposit", func(in *CreateCampInput) { in.DepositAmount = 0 }, platformerrors.CodeCampInvalidDeposit},
		{"negative deposit", func(in *CreateCampInput) { in.DepositAmount = -5 }, platformerrors.CodeCampInvalidDeposit},
		{"zero min", func(in *CreateCampInput) { in.MinParticipants = 0 }, platformerrors.CodeCampInvalidCapacity},
		{"min above max", func(in *CreateCampInput) { in.MinParticipants = 20 }, platformerrors.CodeCampInvalidCapacity},
		{"deadline after end", func(in *CreateCampInput) {
			in.SignupDeadline = in.CampEnd.Add(time.Hour)
			in.CampStart = time.Time{}
		}, platformerrors.CodeCampInvalidSchedule},
		{"start before deadline", func(in *CreateCampInput) { in.CampStart = in.SignupDeadline.Add(-time.Hour) }, platformerrors.CodeCampInvalidSchedule},
		{"start after end", func(in *CreateCampInput) { in.CampStart = in.CampEnd.Add(time.Hour) }, platformerrors.CodeCampInvalidSchedule},
		{"zero levels", func(in *CreateCampInput) { in.TotalLevels = 0 }, platformerrors.CodeCampInvalidLevelCount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			_, err := CreateCamp(input, testClock, nil)
			if platformerrors.CodeOf(err) != tc.want {
				t.Fatalf("expected code %s, got %v", tc.want, err)
			}
		})
	}
}

func TestCampStateTransitions(t *testing.T) {
	legal := []struct {
		from, to CampState
	}{
		{StateSignup, StateFailed},
		{StateSignup, StateOpened},
		{StateOpened, StateChallenge},
		{StateChallenge, StateCompleted},
	}
	for _, edge := range legal {
		camp := Camp{ID: "camp123", State: edge.from}
		if err := camp.TransitionTo(edge.to, testClock()); err != nil {
			t.Fatalf("expected %s -> %s to be legal: %v", edge.from, edge.to, err)
		}
		if camp.State != edge.to {
			t.Fatalf("expected state %s after transition, got %s", edge.to, camp.State)
		}
	}

	illegal := []struct {
		from, to CampState
	}{
		{StateSignup, StateChallenge},
		{StateSignup, StateCompleted},
		{StateOpened, StateSignup},
		{StateOpened, StateFailed},
		{StateChallenge, StateSignup},
		{StateChallenge, StateOpened},
		{StateFailed, StateOpened},
		{StateFailed, StateSignup},
		{StateCompleted, StateChallenge},
	}
	for _, edge := range illegal {
		camp := Camp{ID: "camp123", State: edge.from}
		err := camp.TransitionTo(edge.to, testClock())
		if !errors.Is(err, platformerrors.New(platformerrors.CodeInvalidState, "")) {
			t.Fatalf("expected invalid state error for %s -> %s, got %v", edge.from, edge.to, err)
		}
		if camp.State != edge.from {
			t.Fatalf("expected state to stay %s after rejected transition, got %s", edge.from, camp.State)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	if !StateFailed.Terminal() || !StateCompleted.Terminal() {
		t.Fatal("expected failed and completed to be terminal")
	}
	if StateSignup.Terminal() || StateOpened.Terminal() || StateChallenge.Terminal() {
		t.Fatal("expected signup, opened and challenge to be non-terminal")
	}
}

func TestSetCredentialMode(t *testing.T) {
	camp := Camp{ID: "camp123"}

	if err := camp.SetCredentialMode("other"); platformerrors.CodeOf(err) != platformerrors.CodeCredentialModeFixed {
		t.Fatalf("expected mode validation error, got %v", err)
	}
	if err := camp.SetCredentialMode(CredentialModeBasic); err != nil {
		t.Fatalf("first mode set: %v", err)
	}
	if err := camp.SetCredentialMode(CredentialModeBasic); err != nil {
		t.Fatalf("expected repeated same mode to be accepted: %v", err)
	}
	if err := camp.SetCredentialMode(CredentialModeAdvanced); platformerrors.CodeOf(err) != platformerrors.CodeCredentialModeFixed {
		t.Fatalf("expected fixed mode error, got %v", err)
	}
	if camp.CredentialMode != CredentialModeBasic {
		t.Fatalf("expected mode to remain basic, got %q", camp.CredentialMode)
	}
}

func TestLevelInBounds(t *testing.T) {
	camp := Camp{TotalLevels: 3}
	if camp.LevelInBounds(0) || camp.LevelInBounds(4) {
		t.Fatal("expected out-of-range levels to be rejected")
	}
	if !camp.LevelInBounds(1) || !camp.LevelInBounds(3) {
		t.Fatal("expected levels 1..3 to be in bounds")
	}
}

func TestAmountString(t *testing.T) {
	if got := Amount(2500).String(); got != "2500 gwei" {
		t.Fatalf("unexpected amount rendering: %q", got)
	}
}
