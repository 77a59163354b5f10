package models

import "time"

// TournamentStatus represents tournament lifecycle states, matching the ENUM in the DB.
type TournamentStatus string

const (
	StatusDraft              TournamentStatus = "draft"
	StatusRegistration       TournamentStatus = "registration"
	StatusRegistrationClosed TournamentStatus = "registration_closed"
	StatusInProgress         TournamentStatus = "in_progress"
	StatusCompleted          TournamentStatus = "completed"
	StatusCancelled          TournamentStatus = "cancelled"
)

// IsTerminal reports whether the status is absorbing.
func (s TournamentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
)

const (
	MinCapacity = 4
	MaxCapacity = 64
)

// Tournament is the aggregate root of the lifecycle engine.
type Tournament struct {
	ID          string           `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Format      TournamentFormat `json:"format" db:"format"`
	GameType    string           `json:"game_type" db:"game_type"`
	LocationID  string           `json:"location_id" db:"location_id"`
	OrganizerID string           `json:"organizer_id" db:"organizer_id"`

	RegistrationDeadline time.Time `json:"registration_deadline" db:"registration_deadline"`
	StartTime            time.Time `json:"start_time" db:"start_time"`
	EndTime              time.Time `json:"end_time" db:"end_time"`

	MinParticipants     int `json:"min_participants" db:"min_participants"`
	MaxParticipants     int `json:"max_participants" db:"max_participants"`
	CurrentParticipants int `json:"current_participants" db:"current_participants"`

	EntryFee          int64          `json:"entry_fee" db:"entry_fee"`
	PrizeDistribution map[string]int `json:"prize_distribution,omitempty" db:"-"`

	Status       TournamentStatus  `json:"status" db:"status"`
	Bracket      *BracketStructure `json:"bracket,omitempty" db:"-"`
	TotalRounds  int               `json:"total_rounds" db:"total_rounds"`
	TotalMatches int               `json:"total_matches" db:"total_matches"`
	CurrentRound int               `json:"current_round" db:"current_round"`

	WinnerID     *string `json:"winner_id,omitempty" db:"winner_id"`
	RunnerUpID   *string `json:"runner_up_id,omitempty" db:"runner_up_id"`
	ThirdPlaceID *string `json:"third_place_id,omitempty" db:"third_place_id"`
	CancelReason *string `json:"cancel_reason,omitempty" db:"cancel_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Optional related entities (not mapped directly).
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}
