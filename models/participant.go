package models

import "time"

// ParticipantStatus matches the ENUM in the DB.
type ParticipantStatus string

const (
	ParticipantRegistered   ParticipantStatus = "registered"
	ParticipantConfirmed    ParticipantStatus = "confirmed"
	ParticipantWithdrew     ParticipantStatus = "withdrew"
	ParticipantDisqualified ParticipantStatus = "disqualified"
	ParticipantNoShow       ParticipantStatus = "no_show"
)

// IsActive reports whether the participant still holds a spot in the
// tournament. Withdrawn participants keep their row for audit but have
// already been refunded.
func (s ParticipantStatus) IsActive() bool {
	return s != ParticipantWithdrew
}

type Participant struct {
	ID           string            `json:"id" db:"id"`
	TournamentID string            `json:"tournament_id" db:"tournament_id"`
	UserID       string            `json:"user_id" db:"user_id"`
	Status       ParticipantStatus `json:"status" db:"status"`
	EntryFeePaid int64             `json:"entry_fee_paid" db:"entry_fee_paid"`

	MatchesPlayed int     `json:"matches_played" db:"matches_played"`
	MatchesWon    int     `json:"matches_won" db:"matches_won"`
	MatchesLost   int     `json:"matches_lost" db:"matches_lost"`
	TotalScore    int     `json:"total_score" db:"total_score"`
	BestScore     int     `json:"best_score" db:"best_score"`
	AverageScore  float64 `json:"average_score" db:"average_score"`

	EliminatedInRound *int `json:"eliminated_in_round,omitempty" db:"eliminated_in_round"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RecordResult folds one completed match into the running statistics.
func (p *Participant) RecordResult(score int, won bool) {
	p.MatchesPlayed++
	if won {
		p.MatchesWon++
	} else {
		p.MatchesLost++
	}
	p.TotalScore += score
	if score > p.BestScore {
		p.BestScore = score
	}
	p.AverageScore = float64(p.TotalScore) / float64(p.MatchesPlayed)
}
