package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencourt/tournament-engine/models"
)

func TestRoundRobinPairEnumeration(t *testing.T) {
	gen := NewRoundRobinGenerator()

	for n := 2; n <= 10; n++ {
		n := n
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			result, err := gen.Generate(context.Background(), GenerateParams{
				TournamentID: "t1",
				Participants: testParticipants(n),
				Seed:         1,
			})
			require.NoError(t, err)

			assert.Equal(t, n*(n-1)/2, result.TotalMatches)
			assert.Equal(t, n-1, result.TotalRounds)
			require.Len(t, result.Matches, n*(n-1)/2)

			pairs := make(map[string]bool)
			for _, m := range result.Matches {
				require.NotNil(t, m.Player1ID)
				require.NotNil(t, m.Player2ID)
				assert.Nil(t, m.Round, "round robin matches carry no round number")
				assert.Nil(t, m.NextMatchID)
				assert.False(t, m.IsBye)

				p1, p2 := *m.Player1ID, *m.Player2ID
				if p1 > p2 {
					p1, p2 = p2, p1
				}
				key := p1 + "|" + p2
				assert.False(t, pairs[key], "pair %s appears twice", key)
				pairs[key] = true
			}
			assert.Len(t, pairs, n*(n-1)/2, "every unordered pair plays exactly once")
		})
	}
}

func TestRoundRobinMatchIDsAndStructure(t *testing.T) {
	gen := NewRoundRobinGenerator()
	result, err := gen.Generate(context.Background(), GenerateParams{
		TournamentID: "t1",
		Participants: testParticipants(4),
		Seed:         1,
	})
	require.NoError(t, err)

	rr := result.Structure.RoundRobin
	require.NotNil(t, rr)
	require.Len(t, rr.MatchIDs, 6)

	for i, m := range result.Matches {
		assert.Equal(t, fmt.Sprintf("t1_rr_m%d", i+1), m.ID)
		assert.Equal(t, m.ID, rr.MatchIDs[i])
		assert.Equal(t, i+1, m.Index)
	}

	assert.Equal(t, models.FormatRoundRobin, result.Structure.Format())
	assert.Empty(t, result.Structure.FinalMatchID())
}

func TestRoundRobinRejectsTooFewParticipants(t *testing.T) {
	gen := NewRoundRobinGenerator()
	_, err := gen.Generate(context.Background(), GenerateParams{
		TournamentID: "t1",
		Participants: testParticipants(1),
		Seed:         1,
	})
	assert.Error(t, err)
}
