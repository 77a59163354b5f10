package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/opencourt/tournament-engine/ledger"
	"github.com/opencourt/tournament-engine/models"
	"github.com/opencourt/tournament-engine/repositories"
)

// tournamentFinalizer drives a fully-played tournament to its terminal
// state: podium, stored results, prize settlement, all in one transaction
// under the tournament lock. The match engine calls it when the deciding
// result lands; the scheduler calls it again for tournaments whose matches
// are all resolved but whose completion never committed, so a crash
// between the result and completion transactions cannot strand a
// tournament in progress.
type tournamentFinalizer struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	creditLedger    ledger.CreditLedger
	locks           *TournamentLocks
	logger          *slog.Logger
}

// Finalize completes the tournament once every match is resolved. It is
// idempotent: status and the unresolved count are re-checked inside the
// transaction, and a tournament that is not ready (or already completed)
// is left untouched.
func (f *tournamentFinalizer) Finalize(ctx context.Context, tournamentID string) error {
	unlock := f.locks.Lock(tournamentID)
	defer unlock()

	return f.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := f.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if tournament.Status != models.StatusInProgress {
			return nil
		}

		unresolved, err := f.matchRepo.CountUnresolved(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if unresolved > 0 {
			return nil
		}

		var winner, runnerUp, third *string
		if tournament.Format == models.FormatSingleElimination {
			winner, runnerUp, third, err = f.eliminationPodium(ctx, exec, tournament)
		} else {
			winner, runnerUp, third, err = f.roundRobinPodium(ctx, exec, tournament)
		}
		if err != nil {
			return err
		}

		if err := f.tournamentRepo.SetResults(ctx, exec, tournament.ID, winner, runnerUp, third); err != nil {
			return err
		}
		if err := f.settlePrizes(ctx, exec, tournament, winner, runnerUp, third); err != nil {
			return err
		}

		f.logger.InfoContext(ctx, "tournament completed",
			slog.String("tournament_id", tournament.ID),
			slog.Any("winner_id", winner))
		return nil
	})
}

// eliminationPodium derives the podium from the resolved final: winner and
// runner-up come from the final itself, third place is the losing
// semifinalist with the stronger record (wins, then total score, then
// user id).
func (f *tournamentFinalizer) eliminationPodium(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) (winner, runnerUp, third *string, err error) {
	matches, err := f.matchRepo.ListByTournament(ctx, exec, tournament.ID, nil, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	var final *models.Match
	for _, m := range matches {
		if m.Round != nil && m.NextMatchID == nil {
			final = m
			break
		}
	}
	if final == nil || final.WinnerID == nil {
		return nil, nil, nil, fmt.Errorf("tournament %s has no decided final", tournament.ID)
	}

	winner = final.WinnerID
	if final.Player1ID != nil && *final.Player1ID != *winner {
		runnerUp = final.Player1ID
	} else {
		runnerUp = final.Player2ID
	}

	var losers []*models.Participant
	for _, m := range matches {
		if m.NextMatchID == nil || *m.NextMatchID != final.ID {
			continue
		}
		if m.Status != models.MatchCompleted || m.WinnerID == nil {
			continue
		}
		loserID := *m.Player1ID
		if loserID == *m.WinnerID {
			loserID = *m.Player2ID
		}
		p, err := f.participantRepo.FindActiveByTournamentAndUser(ctx, exec, tournament.ID, loserID)
		if err != nil {
			return nil, nil, nil, err
		}
		losers = append(losers, p)
	}
	if len(losers) > 0 {
		sortByStanding(losers)
		third = &losers[0].UserID
	}
	return winner, runnerUp, third, nil
}

// roundRobinPodium ranks all active participants by standings.
func (f *tournamentFinalizer) roundRobinPodium(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) (winner, runnerUp, third *string, err error) {
	participants, err := f.participantRepo.ListByTournament(ctx, exec, tournament.ID, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	active := make([]*models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.Status.IsActive() {
			active = append(active, p)
		}
	}
	sortByStanding(active)

	if len(active) > 0 {
		winner = &active[0].UserID
	}
	if len(active) > 1 {
		runnerUp = &active[1].UserID
	}
	if len(active) > 2 {
		third = &active[2].UserID
	}
	return winner, runnerUp, third, nil
}

func sortByStanding(participants []*models.Participant) {
	sort.Slice(participants, func(i, j int) bool {
		a, b := participants[i], participants[j]
		if a.MatchesWon != b.MatchesWon {
			return a.MatchesWon > b.MatchesWon
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.UserID < b.UserID
	})
}

// settlePrizes pays out percentage shares of the pot (active entry fees)
// to the podium. Shares without a qualifying place stay escrowed.
func (f *tournamentFinalizer) settlePrizes(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, winner, runnerUp, third *string) error {
	if len(tournament.PrizeDistribution) == 0 {
		return nil
	}

	participants, err := f.participantRepo.ListByTournament(ctx, exec, tournament.ID, nil)
	if err != nil {
		return err
	}
	var pot int64
	for _, p := range participants {
		if p.Status.IsActive() {
			pot += p.EntryFeePaid
		}
	}
	if pot == 0 {
		return nil
	}

	podium := map[string]*string{"1": winner, "2": runnerUp, "3": third}
	for place, userID := range podium {
		pct, ok := tournament.PrizeDistribution[place]
		if !ok || userID == nil {
			continue
		}
		amount := pot * int64(pct) / 100
		if amount == 0 {
			continue
		}
		if _, err := f.creditLedger.Credit(ctx, exec, *userID, amount); err != nil {
			return fmt.Errorf("failed to pay out place %s: %w", place, err)
		}
	}
	return nil
}
