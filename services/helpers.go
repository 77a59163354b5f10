package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/opencourt/tournament-engine/models"
)

func validateTournamentDates(deadline, start, end time.Time) error {
	if deadline.IsZero() || start.IsZero() || end.IsZero() {
		return ErrTournamentDatesRequired
	}
	if !deadline.Before(start) {
		return fmt.Errorf("%w: registration deadline (%s) must be before start time (%s)",
			ErrTournamentInvalidDates, deadline.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start time (%s) must be before end time (%s)",
			ErrTournamentInvalidDates, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func validateCapacity(min, max int) error {
	if min < models.MinCapacity || max > models.MaxCapacity || min > max {
		return fmt.Errorf("%w: got min=%d max=%d", ErrTournamentInvalidCapacity, min, max)
	}
	return nil
}

func validatePrizeDistribution(prizes map[string]int) error {
	total := 0
	for place, pct := range prizes {
		if pct <= 0 {
			return fmt.Errorf("%w: place %q has share %d", ErrInvalidPrizeDistribution, place, pct)
		}
		total += pct
	}
	if total > 100 {
		return fmt.Errorf("%w: shares sum to %d", ErrInvalidPrizeDistribution, total)
	}
	return nil
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusDraft:              {models.StatusRegistration, models.StatusCancelled},
		models.StatusRegistration:       {models.StatusRegistrationClosed, models.StatusCancelled},
		models.StatusRegistrationClosed: {models.StatusInProgress, models.StatusCancelled},
		models.StatusInProgress:         {models.StatusCompleted, models.StatusCancelled},
		models.StatusCompleted:          {},
		models.StatusCancelled:          {},
	}
	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}

// TournamentLocks serializes mutating operations per tournament, so the
// capacity/status read-check-write in registration cannot race a start or
// cancel on the same tournament. Operations on distinct tournaments never
// contend.
type TournamentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTournamentLocks() *TournamentLocks {
	return &TournamentLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *TournamentLocks) Lock(tournamentID string) func() {
	l.mu.Lock()
	m, ok := l.locks[tournamentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[tournamentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
