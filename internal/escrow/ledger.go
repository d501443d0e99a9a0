// Package escrow tracks deposit dispositions and enforces the reconciliation
// invariant: locked + refunded + penalized always equals the sum of every
// deposit ever taken.
package escrow

import (
	"context"
	"fmt"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/identity"
)

// Disposition classifies where a participant's deposit currently sits.
type Disposition string

const (
	// DispositionLocked means the deposit is held by the camp.
	DispositionLocked Disposition = "locked"
	// DispositionRefunded means the deposit was returned to its owner.
	DispositionRefunded Disposition = "refunded"
	// DispositionPenalized means the deposit was forfeited to the penalty pool.
	DispositionPenalized Disposition = "penalized"
)

// Entry is one participant's deposit position within a camp.
type Entry struct {
	CampID      string
	Address     identity.Address
	Amount      domain.Amount
	Disposition Disposition
}

// Ledger is the escrow view of a single camp. It is derived from the camp's
// participant records and therefore carries no independent mutation path.
type Ledger struct {
	CampID  string
	Deposit domain.Amount
	Entries []Entry
}

// BuildLedger derives the escrow ledger from a camp and its participants.
func BuildLedger(camp domain.Camp, participants []domain.Participant) Ledger {
	ledger := Ledger{
		CampID:  camp.ID,
		Deposit: camp.DepositAmount,
		Entries: make([]Entry, 0, len(participants)),
	}
	for _, p := range participants {
		disposition := DispositionLocked
		switch {
		case p.Refunded:
			disposition = DispositionRefunded
		case p.Penalized:
			disposition = DispositionPenalized
		}
		ledger.Entries = append(ledger.Entries, Entry{
			CampID:      camp.ID,
			Address:     p.Address,
			Amount:      camp.DepositAmount,
			Disposition: disposition,
		})
	}
	return ledger
}

// TotalLocked sums deposits still held by the camp.
func (l Ledger) TotalLocked() domain.Amount {
	return l.total(DispositionLocked)
}

// TotalRefunded sums deposits returned to participants.
func (l Ledger) TotalRefunded() domain.Amount {
	return l.total(DispositionRefunded)
}

// PenaltyPool sums deposits forfeited by incomplete participants.
func (l Ledger) PenaltyPool() domain.Amount {
	return l.total(DispositionPenalized)
}

func (l Ledger) total(d Disposition) domain.Amount {
	var sum domain.Amount
	for _, entry := range l.Entries {
		if entry.Disposition == d {
			sum += entry.Amount
		}
	}
	return sum
}

// Reconcile verifies the escrow invariant: every deposit ever locked is
// accounted for as locked, refunded, or penalized, with no drift.
func (l Ledger) Reconcile() error {
	allTime := l.Deposit * domain.Amount(len(l.Entries))
	accounted := l.TotalLocked() + l.TotalRefunded() + l.PenaltyPool()
	if accounted != allTime {
		return fmt.Errorf("escrow drift for camp %s: accounted %d, expected %d", l.CampID, accounted, allTime)
	}
	return nil
}

// PenaltyPolicy decides where forfeited deposits go.
type PenaltyPolicy string

const (
	// PolicyOrganizer pays the penalty pool out to the camp organizer.
	PolicyOrganizer PenaltyPolicy = "organizer"
	// PolicyBurn destroys the penalty pool.
	PolicyBurn PenaltyPolicy = "burn"
)

// Valid reports whether the policy is one of the supported dispositions.
func (p PenaltyPolicy) Valid() bool {
	return p == PolicyOrganizer || p == PolicyBurn
}

// BalanceSource reports whether a caller can cover a deposit. It stands in
// for the wallet collaborator that actually moves funds.
type BalanceSource interface {
	Balance(ctx context.Context, addr identity.Address) (domain.Amount, error)
}

// StaticBalances is a BalanceSource backed by a fixed map, used for seeding
// and tests. Addresses absent from the map have a zero balance.
type StaticBalances map[identity.Address]domain.Amount

// Balance returns the configured balance for addr.
func (b StaticBalances) Balance(_ context.Context, addr identity.Address) (domain.Amount, error) {
	return b[addr], nil
}

// UnlimitedBalances is a BalanceSource that always covers any deposit.
type UnlimitedBalances struct{}

// Balance returns the maximum representable amount.
func (UnlimitedBalances) Balance(context.Context, identity.Address) (domain.Amount, error) {
	return domain.Amount(1<<62 - 1), nil
}
