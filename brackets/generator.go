package brackets

import (
	"context"

	"github.com/opencourt/tournament-engine/models"
)

type GenerateParams struct {
	TournamentID string
	Participants []*models.Participant

	// Seed drives the shuffle that assigns bracket positions. Fixed
	// values give reproducible brackets in tests.
	Seed int64
}

// Result carries the generated bracket document together with the match
// rows to persist. TotalMatches counts playable matches only, never byes.
type Result struct {
	Structure    *models.BracketStructure
	Matches      []*models.Match
	TotalRounds  int
	TotalMatches int
}

type Generator interface {
	Generate(ctx context.Context, params GenerateParams) (*Result, error)

	Name() string
}

// ForFormat returns the generator implementing the given tournament format.
func ForFormat(format models.TournamentFormat) (Generator, bool) {
	switch format {
	case models.FormatSingleElimination:
		return NewSingleEliminationGenerator(), true
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), true
	default:
		return nil, false
	}
}
