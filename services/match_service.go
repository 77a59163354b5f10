package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencourt/tournament-engine/ledger"
	"github.com/opencourt/tournament-engine/models"
	"github.com/opencourt/tournament-engine/repositories"
)

// MatchService is the match progression engine: it records results,
// advances elimination winners into their fixed downstream slots, and
// drives the tournament to completion once the deciding match resolves.
//
// Submissions for different matches run in parallel without locking; only
// the shared fan-in slot uses a compare-and-set, and completion itself is
// serialized on the tournament lock.
type MatchService struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	logger          *slog.Logger
	finalizer       *tournamentFinalizer

	now func() time.Time
}

func NewMatchService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	creditLedger ledger.CreditLedger,
	locks *TournamentLocks,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		logger:          logger,
		finalizer: &tournamentFinalizer{
			tx:              tx,
			tournamentRepo:  tournamentRepo,
			participantRepo: participantRepo,
			matchRepo:       matchRepo,
			creditLedger:    creditLedger,
			locks:           locks,
			logger:          logger,
		},
		now: time.Now,
	}
}

// SubmitResult completes a scheduled match: stores scores and winner,
// updates both participants' running statistics, and advances the winner
// through the bracket. If the result decides the tournament, completion
// and prize settlement follow in a separate serialized step.
func (s *MatchService) SubmitResult(ctx context.Context, matchID, winnerID string, score1, score2 int) (*models.Match, error) {
	if score1 < 0 || score2 < 0 {
		return nil, ErrInvalidScore
	}

	var match *models.Match
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		match, err = s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}

		if match.Status != models.MatchScheduled {
			return fmt.Errorf("%w: match %s is %s", ErrMatchNotScheduled, matchID, match.Status)
		}
		if match.Player1ID == nil || match.Player2ID == nil {
			return fmt.Errorf("%w: match %s is still waiting for an opponent", ErrMatchNotScheduled, matchID)
		}
		if !match.HasPlayer(winnerID) {
			return fmt.Errorf("%w: %s", ErrInvalidWinner, winnerID)
		}

		completedAt := s.now().UTC()
		match.Status = models.MatchCompleted
		match.WinnerID = &winnerID
		match.Score1 = &score1
		match.Score2 = &score2
		match.CompletedAt = &completedAt
		if err := s.matchRepo.UpdateResult(ctx, exec, match); err != nil {
			return err
		}

		if err := s.recordStatistics(ctx, exec, match); err != nil {
			return err
		}
		return s.advanceWinner(ctx, exec, match)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match result recorded",
		slog.String("match_id", matchID),
		slog.String("winner_id", winnerID))

	if err := s.maybeComplete(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *MatchService) GetByID(ctx context.Context, matchID string) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *MatchService) ListByTournament(ctx context.Context, tournamentID string, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	return s.matchRepo.ListByTournament(ctx, nil, tournamentID, round, status)
}

func (s *MatchService) recordStatistics(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	for _, entry := range []struct {
		userID string
		score  int
	}{
		{*match.Player1ID, *match.Score1},
		{*match.Player2ID, *match.Score2},
	} {
		participant, err := s.participantRepo.FindActiveByTournamentAndUser(ctx, exec, match.TournamentID, entry.userID)
		if err != nil {
			return fmt.Errorf("failed to load participant %s for stats update: %w", entry.userID, err)
		}

		won := entry.userID == *match.WinnerID
		if err := s.participantRepo.ApplyMatchResult(ctx, exec, participant.ID, entry.score, won); err != nil {
			return err
		}
		if !won && match.Round != nil {
			if err := s.participantRepo.SetEliminated(ctx, exec, participant.ID, *match.Round); err != nil {
				return err
			}
		}
	}
	return nil
}

// advanceWinner places the winner into the fixed downstream slot and
// cascades through bye matches: a bye resolves as a walkover the moment
// its single player arrives.
func (s *MatchService) advanceWinner(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	current := match
	for current.NextMatchID != nil && current.WinnerID != nil {
		nextID, slot, winner := *current.NextMatchID, *current.NextMatchSlot, *current.WinnerID

		filled, err := s.matchRepo.FillSlot(ctx, exec, nextID, slot, winner)
		if err != nil {
			return err
		}
		if !filled {
			return fmt.Errorf("slot %d of match %s is already occupied", slot, nextID)
		}

		next, err := s.matchRepo.GetByID(ctx, exec, nextID)
		if err != nil {
			return err
		}
		if !next.IsBye || next.Status != models.MatchScheduled {
			return nil
		}

		next.Status = models.MatchWalkover
		next.WinnerID = next.Player1ID
		if err := s.matchRepo.UpdateResult(ctx, exec, next); err != nil {
			return err
		}
		current = next
	}
	return nil
}

// maybeComplete finalizes the tournament when the deciding result is in:
// the championship match for single elimination, the last pending match
// for round robin.
func (s *MatchService) maybeComplete(ctx context.Context, match *models.Match) error {
	decisive := false
	if match.Round != nil {
		// The final is the only elimination match without a downstream slot.
		decisive = match.NextMatchID == nil
	} else {
		unresolved, err := s.matchRepo.CountUnresolved(ctx, nil, match.TournamentID)
		if err != nil {
			return err
		}
		decisive = unresolved == 0
	}
	if !decisive {
		return s.advanceCurrentRound(ctx, match)
	}
	return s.finalizer.Finalize(ctx, match.TournamentID)
}

func (s *MatchService) advanceCurrentRound(ctx context.Context, match *models.Match) error {
	if match.Round == nil {
		return nil
	}

	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, match.TournamentID)
		if err != nil {
			return err
		}
		if *match.Round != tournament.CurrentRound || *match.Round >= tournament.TotalRounds {
			return nil
		}

		scheduled := models.MatchScheduled
		pending, err := s.matchRepo.ListByTournament(ctx, exec, match.TournamentID, match.Round, &scheduled)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return nil
		}
		return s.tournamentRepo.SetCurrentRound(ctx, exec, match.TournamentID, *match.Round+1)
	})
}
