package domain

import (
	"sort"
	"time"

	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/platform/errors"
)

// Participant records one wallet's membership in a camp.
//
// Refunded and Penalized are mutually exclusive terminal flags, each settable
// at most once. CurrentLevel only moves forward.
type Participant struct {
	CampID          string
	Address         identity.Address
	Index           int // 1-based join order, used for advanced credential scoping
	JoinedAt        time.Time
	DepositLocked   bool
	Refunded        bool
	Penalized       bool
	CurrentLevel    int
	CompletedLevels map[int]struct{}
}

// NewParticipant creates a participant with a locked deposit at level 1.
func NewParticipant(campID string, addr identity.Address, index int, joinedAt time.Time) Participant {
	return Participant{
		CampID:          campID,
		Address:         addr,
		Index:           index,
		JoinedAt:        joinedAt.UTC(),
		DepositLocked:   true,
		CurrentLevel:    1,
		CompletedLevels: make(map[int]struct{}),
	}
}

// HasCompleted reports whether the participant completed the given level.
func (p Participant) HasCompleted(level int) bool {
	_, ok := p.CompletedLevels[level]
	return ok
}

// CompleteLevel marks a level complete and advances CurrentLevel when the
// completed level is the current one. Advancement skips past any levels
// already completed out of order, so CurrentLevel always points at the lowest
// uncompleted level. Returns false when the level was already complete.
func (p *Participant) CompleteLevel(level int) bool {
	if p.HasCompleted(level) {
		return false
	}
	if p.CompletedLevels == nil {
		p.CompletedLevels = make(map[int]struct{})
	}
	p.CompletedLevels[level] = struct{}{}
	if level == p.CurrentLevel {
		next := p.CurrentLevel + 1
		for p.HasCompleted(next) {
			next++
		}
		p.CurrentLevel = next
	}
	return true
}

// CompletedCount returns how many levels the participant has completed.
func (p Participant) CompletedCount() int {
	return len(p.CompletedLevels)
}

// FullyCompleted reports whether the participant completed every level.
func (p Participant) FullyCompleted(totalLevels int) bool {
	return totalLevels > 0 && len(p.CompletedLevels) >= totalLevels
}

// CompletedLevelList returns the completed levels in ascending order.
func (p Participant) CompletedLevelList() []int {
	levels := make([]int, 0, len(p.CompletedLevels))
	for level := range p.CompletedLevels {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

// MarkRefunded releases the deposit back to the participant.
func (p *Participant) MarkRefunded() error {
	if p.Refunded {
		return errors.WithMetadata(errors.CodeAlreadyRefunded, "deposit already refunded", map[string]string{
			"camp_id": p.CampID,
			"address": p.Address.String(),
		})
	}
	if p.Penalized {
		return errors.New(errors.CodeInvalidState, "penalized deposit cannot be refunded")
	}
	p.Refunded = true
	p.DepositLocked = false
	return nil
}

// MarkPenalized forfeits the deposit into the penalty pool.
func (p *Participant) MarkPenalized() error {
	if p.Penalized {
		return errors.New(errors.CodeInvalidState, "deposit already penalized")
	}
	if p.Refunded {
		return errors.New(errors.CodeInvalidState, "refunded deposit cannot be penalized")
	}
	p.Penalized = true
	p.DepositLocked = false
	return nil
}
