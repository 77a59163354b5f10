package brackets

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/opencourt/tournament-engine/models"
)

// node is one entrant slot of a round: either a player already known, or
// the future winner of a feeding match.
type node struct {
	userID     *string
	srcMatchID string
}

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() *SingleEliminationGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) Name() string {
	return "SingleElimination"
}

// Generate builds a single-elimination bracket. Seeding is a uniform
// shuffle of the participant list; round 1 pairs consecutive seeds, and
// the winner of match k advances into match k/2 of the next round, slot
// k%2+1. A round with an odd entrant count gives its trailing entrant a
// bye: a single-slot match that resolves as a walkover. Byes whose player
// is already known resolve here; the rest resolve on arrival of the
// upstream winner.
func (g *SingleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) (*Result, error) {
	n := len(params.Participants)
	if n < 2 {
		return nil, errors.New("single elimination requires at least 2 participants")
	}

	entrants := seedOrder(params.Participants, params.Seed)

	current := make([]node, n)
	for i, userID := range entrants {
		id := userID
		current[i] = node{userID: &id}
	}

	now := time.Now().UTC()
	var rounds [][]*models.Match
	playable := 0

	for round := 1; len(current) > 1; round++ {
		r := round
		var matches []*models.Match
		var next []node

		for i := 0; i < len(current); i += 2 {
			idx := i/2 + 1
			m := &models.Match{
				ID:           models.EliminationMatchID(params.TournamentID, round, idx),
				TournamentID: params.TournamentID,
				Round:        &r,
				Index:        idx,
				Player1ID:    current[i].userID,
				Status:       models.MatchScheduled,
				CreatedAt:    now,
			}

			if i+1 < len(current) {
				m.Player2ID = current[i+1].userID
				playable++
				next = append(next, node{srcMatchID: m.ID})
			} else {
				m.IsBye = true
				if m.Player1ID != nil {
					m.Status = models.MatchWalkover
					m.WinnerID = m.Player1ID
					next = append(next, node{userID: m.Player1ID})
				} else {
					next = append(next, node{srcMatchID: m.ID})
				}
			}
			matches = append(matches, m)
		}

		rounds = append(rounds, matches)
		current = next
	}

	// Fan-in links: fixed by position, never recomputed from results.
	for r := 0; r+1 < len(rounds); r++ {
		for k, m := range rounds[r] {
			target := rounds[r+1][k/2]
			slot := k%2 + 1
			m.NextMatchID = &target.ID
			m.NextMatchSlot = &slot
		}
	}

	structure := &models.SingleEliminationBracket{Rounds: make([][]string, len(rounds))}
	var all []*models.Match
	for r, matches := range rounds {
		structure.Rounds[r] = make([]string, len(matches))
		for k, m := range matches {
			structure.Rounds[r][k] = m.ID
			all = append(all, m)
		}
	}

	return &Result{
		Structure:    &models.BracketStructure{SingleElimination: structure},
		Matches:      all,
		TotalRounds:  len(rounds),
		TotalMatches: playable,
	}, nil
}

// seedOrder returns participant user IDs in bracket-position order: a
// deterministic sort followed by a seeded shuffle, so equal seeds always
// produce the same bracket.
func seedOrder(participants []*models.Participant, seed int64) []string {
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.UserID
	}
	sort.Strings(ids)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}
