package brackets

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/opencourt/tournament-engine/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() *RoundRobinGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) Name() string {
	return "RoundRobin"
}

// Generate enumerates every unordered pair of participants once, in seed
// order. The schedule is a flat list: matches carry no round number and
// no advancement links, results only feed standings.
func (g *RoundRobinGenerator) Generate(ctx context.Context, params GenerateParams) (*Result, error) {
	n := len(params.Participants)
	if n < 2 {
		return nil, errors.New("round robin requires at least 2 participants")
	}

	seeds := make([]string, n)
	for i, p := range params.Participants {
		seeds[i] = p.UserID
	}
	sort.Strings(seeds)

	now := time.Now().UTC()
	matches := make([]*models.Match, 0, n*(n-1)/2)
	structure := &models.RoundRobinBracket{MatchIDs: make([]string, 0, n*(n-1)/2)}

	idx := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			idx++
			p1, p2 := seeds[i], seeds[j]
			m := &models.Match{
				ID:           models.RoundRobinMatchID(params.TournamentID, idx),
				TournamentID: params.TournamentID,
				Index:        idx,
				Player1ID:    &p1,
				Player2ID:    &p2,
				Status:       models.MatchScheduled,
				CreatedAt:    now,
			}
			matches = append(matches, m)
			structure.MatchIDs = append(structure.MatchIDs, m.ID)
		}
	}

	return &Result{
		Structure:    &models.BracketStructure{RoundRobin: structure},
		Matches:      matches,
		TotalRounds:  n - 1,
		TotalMatches: len(matches),
	}, nil
}
