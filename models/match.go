package models

import (
	"fmt"
	"time"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
	MatchWalkover   MatchStatus = "walkover"
)

// Match is a single pairing inside a bracket. Player2ID stays nil for a
// bye; deeper in an elimination bracket a nil player slot just means the
// feeding match has not resolved yet, so IsBye disambiguates the two.
type Match struct {
	ID           string `json:"id" db:"id"`
	TournamentID string `json:"tournament_id" db:"tournament_id"`

	// Round is nil for round-robin matches, which have no per-round grouping.
	Round *int `json:"round,omitempty" db:"round"`
	Index int  `json:"index" db:"idx"`

	Player1ID *string `json:"player1_id,omitempty" db:"player1_id"`
	Player2ID *string `json:"player2_id,omitempty" db:"player2_id"`
	IsBye     bool    `json:"is_bye" db:"is_bye"`

	Status   MatchStatus `json:"status" db:"status"`
	WinnerID *string     `json:"winner_id,omitempty" db:"winner_id"`
	Score1   *int        `json:"score1,omitempty" db:"score1"`
	Score2   *int        `json:"score2,omitempty" db:"score2"`

	// Fan-in link: the downstream match and slot (1 or 2) this match's
	// winner advances into. Nil for the final and for round robin.
	NextMatchID   *string `json:"next_match_id,omitempty" db:"next_match_id"`
	NextMatchSlot *int    `json:"next_match_slot,omitempty" db:"next_match_slot"`

	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// IsResolved reports whether the match no longer awaits a result.
func (m *Match) IsResolved() bool {
	return m.Status == MatchCompleted || m.Status == MatchWalkover || m.Status == MatchCancelled
}

// HasPlayer reports whether userID occupies one of the match's slots.
func (m *Match) HasPlayer(userID string) bool {
	return (m.Player1ID != nil && *m.Player1ID == userID) ||
		(m.Player2ID != nil && *m.Player2ID == userID)
}

// EliminationMatchID builds the deterministic ID of an elimination match.
func EliminationMatchID(tournamentID string, round, index int) string {
	return fmt.Sprintf("%s_r%d_m%d", tournamentID, round, index)
}

// RoundRobinMatchID builds the deterministic ID of a round-robin match.
func RoundRobinMatchID(tournamentID string, index int) string {
	return fmt.Sprintf("%s_rr_m%d", tournamentID, index)
}
