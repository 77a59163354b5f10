package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencourt/tournament-engine/models"
)

// playableMatches returns scheduled matches with both slots filled, in
// bracket order.
func playableMatches(t *testing.T, env *testEnv, tournamentID string) []*models.Match {
	t.Helper()
	scheduled := models.MatchScheduled
	matches, err := env.matchSvc.ListByTournament(context.Background(), tournamentID, nil, &scheduled)
	require.NoError(t, err)

	playable := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m.Player1ID != nil && m.Player2ID != nil {
			playable = append(playable, m)
		}
	}
	return playable
}

// playOut submits every remaining match, applying pickWinner to choose
// the winner (scored 10-5), until nothing is playable.
func playOut(t *testing.T, env *testEnv, tournamentID string, pickWinner func(p1, p2 string) string) {
	t.Helper()
	for {
		playable := playableMatches(t, env, tournamentID)
		if len(playable) == 0 {
			return
		}
		for _, m := range playable {
			winner := pickWinner(*m.Player1ID, *m.Player2ID)
			score1, score2 := 10, 5
			if winner == *m.Player2ID {
				score1, score2 = 5, 10
			}
			_, err := env.matchSvc.SubmitResult(context.Background(), m.ID, winner, score1, score2)
			require.NoError(t, err)
		}
	}
}

func maxUser(p1, p2 string) string {
	if p1 > p2 {
		return p1
	}
	return p2
}

func TestSubmitResultValidation(t *testing.T) {
	env := newTestEnv()
	tournament := startedTournament(t, env, models.FormatSingleElimination, 4)
	playable := playableMatches(t, env, tournament.ID)
	require.Len(t, playable, 2)
	match := playable[0]

	_, err := env.matchSvc.SubmitResult(context.Background(), "missing", *match.Player1ID, 10, 5)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = env.matchSvc.SubmitResult(context.Background(), match.ID, *match.Player1ID, -1, 5)
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = env.matchSvc.SubmitResult(context.Background(), match.ID, "outsider", 10, 5)
	assert.ErrorIs(t, err, ErrInvalidWinner)

	// The final still waits for both semifinal winners.
	finalID := tournament.Bracket.FinalMatchID()
	require.NotEmpty(t, finalID)
	_, err = env.matchSvc.SubmitResult(context.Background(), finalID, *match.Player1ID, 10, 5)
	assert.ErrorIs(t, err, ErrMatchNotScheduled)

	// A completed match rejects a second submission.
	_, err = env.matchSvc.SubmitResult(context.Background(), match.ID, *match.Player1ID, 10, 5)
	require.NoError(t, err)
	_, err = env.matchSvc.SubmitResult(context.Background(), match.ID, *match.Player2ID, 5, 10)
	assert.ErrorIs(t, err, ErrMatchNotScheduled)
}

func TestSubmitResultRecordsStatistics(t *testing.T) {
	env := newTestEnv()
	tournament := startedTournament(t, env, models.FormatSingleElimination, 4)
	match := playableMatches(t, env, tournament.ID)[0]
	p1, p2 := *match.Player1ID, *match.Player2ID

	completed, err := env.matchSvc.SubmitResult(context.Background(), match.ID, p1, 21, 13)
	require.NoError(t, err)
	assert.Equal(t, models.MatchCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	participants, err := env.registrationSvc.ListByTournament(context.Background(), tournament.ID, nil)
	require.NoError(t, err)
	byUser := make(map[string]*models.Participant)
	for _, p := range participants {
		byUser[p.UserID] = p
	}

	winner := byUser[p1]
	assert.Equal(t, 1, winner.MatchesPlayed)
	assert.Equal(t, 1, winner.MatchesWon)
	assert.Equal(t, 0, winner.MatchesLost)
	assert.Equal(t, 21, winner.TotalScore)
	assert.Equal(t, 21, winner.BestScore)
	assert.InDelta(t, 21.0, winner.AverageScore, 0.001)
	assert.Nil(t, winner.EliminatedInRound)

	loser := byUser[p2]
	assert.Equal(t, 1, loser.MatchesPlayed)
	assert.Equal(t, 0, loser.MatchesWon)
	assert.Equal(t, 1, loser.MatchesLost)
	assert.Equal(t, 13, loser.TotalScore)
	require.NotNil(t, loser.EliminatedInRound)
	assert.Equal(t, 1, *loser.EliminatedInRound)
}

func TestSubmitResultAdvancesWinnerIntoLinkedSlot(t *testing.T) {
	env := newTestEnv()
	tournament := startedTournament(t, env, models.FormatSingleElimination, 4)
	playable := playableMatches(t, env, tournament.ID)
	require.Len(t, playable, 2)

	first := playable[0]
	winner := *first.Player1ID
	_, err := env.matchSvc.SubmitResult(context.Background(), first.ID, winner, 10, 5)
	require.NoError(t, err)

	require.NotNil(t, first.NextMatchID)
	next, err := env.matchSvc.GetByID(context.Background(), *first.NextMatchID)
	require.NoError(t, err)

	switch *first.NextMatchSlot {
	case 1:
		require.NotNil(t, next.Player1ID)
		assert.Equal(t, winner, *next.Player1ID)
	case 2:
		require.NotNil(t, next.Player2ID)
		assert.Equal(t, winner, *next.Player2ID)
	}
}

func TestEliminationRoundAdvances(t *testing.T) {
	env := newTestEnv()
	tournament := startedTournament(t, env, models.FormatSingleElimination, 8)
	assert.Equal(t, 1, tournament.CurrentRound)

	for _, m := range playableMatches(t, env, tournament.ID) {
		require.NotNil(t, m.Round)
		require.Equal(t, 1, *m.Round)
		_, err := env.matchSvc.SubmitResult(context.Background(), m.ID, *m.Player1ID, 10, 5)
		require.NoError(t, err)
	}

	stored, err := env.tournamentSvc.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentRound)
}

func TestEliminationTournamentCompletes(t *testing.T) {
	env := newTestEnv()
	tournament := startedTournament(t, env, models.FormatSingleElimination, 4)

	playOut(t, env, tournament.ID, maxUser)

	stored, err := env.tournamentSvc.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)

	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, "user03", *stored.WinnerID, "the strongest player under max-wins rules takes the title")
	require.NotNil(t, stored.RunnerUpID)
	require.NotNil(t, stored.ThirdPlaceID)
	assert.NotEqual(t, *stored.WinnerID, *stored.RunnerUpID)

	// Third place is the semifinal loser with the better record; both lost
	// their only match 5-10, so the user id breaks the tie.
	final, err := env.matchSvc.GetByID(context.Background(), stored.Bracket.FinalMatchID())
	require.NoError(t, err)
	finalists := map[string]bool{*final.Player1ID: true, *final.Player2ID: true}
	expectedThird := ""
	for _, userID := range []string{"user00", "user01", "user02", "user03"} {
		if !finalists[userID] && (expectedThird == "" || userID < expectedThird) {
			expectedThird = userID
		}
	}
	assert.Equal(t, expectedThird, *stored.ThirdPlaceID)
}

func TestEliminationWithByesCompletes(t *testing.T) {
	env := newTestEnv()
	tournament := startedTournament(t, env, models.FormatSingleElimination, 5)

	playOut(t, env, tournament.ID, maxUser)

	stored, err := env.tournamentSvc.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	require.NotNil(t, stored.WinnerID)

	completedCount := 0
	for _, m := range stored.Matches {
		require.True(t, m.IsResolved(), "match %s left unresolved", m.ID)
		if m.Status == models.MatchCompleted {
			completedCount++
		}
	}
	assert.Equal(t, stored.TotalMatches, completedCount, "every playable match got a real result")
}

func TestRoundRobinTournamentCompletes(t *testing.T) {
	env := newTestEnv()
	tournament := startedTournament(t, env, models.FormatRoundRobin, 4)

	playOut(t, env, tournament.ID, maxUser)

	stored, err := env.tournamentSvc.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)

	// user03 beat everyone, user02 all but user03, and so on down.
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, "user03", *stored.WinnerID)
	require.NotNil(t, stored.RunnerUpID)
	assert.Equal(t, "user02", *stored.RunnerUpID)
	require.NotNil(t, stored.ThirdPlaceID)
	assert.Equal(t, "user01", *stored.ThirdPlaceID)
}

func TestPrizeSettlement(t *testing.T) {
	env := newTestEnv()
	tournament := startedTournament(t, env, models.FormatRoundRobin, 4)

	playOut(t, env, tournament.ID, maxUser)

	// Pot is 4 x 100; shares are 50/30/20 percent. Every player paid 100
	// from the initial 1000.
	expected := map[string]int64{
		"user03": 900 + 200,
		"user02": 900 + 120,
		"user01": 900 + 80,
		"user00": 900,
	}
	for userID, want := range expected {
		balance, err := env.creditLedger.GetBalance(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, want, balance, "balance of %s", userID)
	}
}

func TestCompletionSettlesOnlyOnce(t *testing.T) {
	env := newTestEnv()
	tournament := startedTournament(t, env, models.FormatSingleElimination, 4)

	playOut(t, env, tournament.ID, maxUser)

	stored, err := env.tournamentSvc.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, stored.Status)

	// The deciding match rejects resubmission, so no second settlement can
	// even reach the completion path.
	final := stored.Bracket.FinalMatchID()
	_, err = env.matchSvc.SubmitResult(context.Background(), final, *stored.WinnerID, 10, 5)
	assert.ErrorIs(t, err, ErrMatchNotScheduled)

	balance, err := env.creditLedger.GetBalance(context.Background(), *stored.WinnerID)
	require.NoError(t, err)
	assert.Equal(t, int64(900+200), balance)
}
