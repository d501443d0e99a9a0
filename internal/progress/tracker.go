// Package progress exposes derived progression queries over participants.
//
// The tracker has no mutation path of its own: completed levels only change
// as a side effect of credential verification, and everything here is
// computed from the participant records on demand.
package progress

import (
	"sort"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
)

// Snapshot summarizes one participant's progression through a camp.
type Snapshot struct {
	Address         string
	CurrentLevel    int
	CompletedLevels []int
	CompletedCount  int
	FullyCompleted  bool
}

// Of builds a progression snapshot for a participant.
func Of(participant domain.Participant, totalLevels int) Snapshot {
	return Snapshot{
		Address:         participant.Address.String(),
		CurrentLevel:    participant.CurrentLevel,
		CompletedLevels: participant.CompletedLevelList(),
		CompletedCount:  participant.CompletedCount(),
		FullyCompleted:  participant.FullyCompleted(totalLevels),
	}
}

// Partition splits participants into those who completed every level and
// those who did not. Both slices are ordered by join index so the split is
// stable across calls.
func Partition(participants []domain.Participant, totalLevels int) (completed, failed []domain.Participant) {
	ordered := make([]domain.Participant, len(participants))
	copy(ordered, participants)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})
	for _, p := range ordered {
		if p.FullyCompleted(totalLevels) {
			completed = append(completed, p)
		} else {
			failed = append(failed, p)
		}
	}
	return completed, failed
}

// CompletionRate returns the share of participants who completed every
// level, in the range [0, 1]. An empty camp has a zero rate.
func CompletionRate(participants []domain.Participant, totalLevels int) float64 {
	if len(participants) == 0 {
		return 0
	}
	completed, _ := Partition(participants, totalLevels)
	return float64(len(completed)) / float64(len(participants))
}

// AllLevelsExhausted reports whether every participant has completed every
// level, the early-close condition for a camp in Challenge.
func AllLevelsExhausted(participants []domain.Participant, totalLevels int) bool {
	if len(participants) == 0 {
		return false
	}
	for _, p := range participants {
		if !p.FullyCompleted(totalLevels) {
			return false
		}
	}
	return true
}
