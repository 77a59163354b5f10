package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/opencourt/tournament-engine/brackets"
	"github.com/opencourt/tournament-engine/ledger"
	"github.com/opencourt/tournament-engine/location"
	"github.com/opencourt/tournament-engine/models"
	"github.com/opencourt/tournament-engine/repositories"
)

// Statuses that keep a venue booked. Terminal tournaments release their
// hold simply by dropping out of this set.
var venueHoldingStatuses = []models.TournamentStatus{
	models.StatusRegistration,
	models.StatusRegistrationClosed,
	models.StatusInProgress,
}

type CreateTournamentInput struct {
	Name                 string                  `json:"name"`
	Format               models.TournamentFormat `json:"format"`
	GameType             string                  `json:"game_type"`
	LocationID           string                  `json:"location_id"`
	OrganizerID          string                  `json:"organizer_id"`
	RegistrationDeadline time.Time               `json:"registration_deadline"`
	StartTime            time.Time               `json:"start_time"`
	EndTime              time.Time               `json:"end_time"`
	MinParticipants      int                     `json:"min_participants"`
	MaxParticipants      int                     `json:"max_participants"`
	EntryFee             int64                   `json:"entry_fee"`
	PrizeDistribution    map[string]int          `json:"prize_distribution"`
}

// TournamentService owns tournament creation, querying and every
// lifecycle transition except match-driven completion.
type TournamentService struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	creditLedger    ledger.CreditLedger
	locationSvc     location.Service
	locks           *TournamentLocks
	logger          *slog.Logger
	finalizer       *tournamentFinalizer

	now         func() time.Time
	bracketSeed func() int64
}

func NewTournamentService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	creditLedger ledger.CreditLedger,
	locationSvc location.Service,
	locks *TournamentLocks,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		creditLedger:    creditLedger,
		locationSvc:     locationSvc,
		locks:           locks,
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
		now:         time.Now,
		bracketSeed: func() int64 { return time.Now().UnixNano() },
	}
}

// Create validates the input and the venue, then persists a draft
// tournament.
func (s *TournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if input.Name == "" {
		return nil, ErrTournamentNameRequired
	}
	if _, ok := brackets.ForFormat(input.Format); !ok {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidFormat, input.Format)
	}
	if input.LocationID == "" || input.OrganizerID == "" {
		return nil, fmt.Errorf("%w: location_id and organizer_id are required", ErrValidationFailed)
	}
	if input.EntryFee < 0 {
		return nil, fmt.Errorf("%w: entry fee must not be negative", ErrValidationFailed)
	}
	if err := validateTournamentDates(input.RegistrationDeadline, input.StartTime, input.EndTime); err != nil {
		return nil, err
	}
	if err := validateCapacity(input.MinParticipants, input.MaxParticipants); err != nil {
		return nil, err
	}
	if err := validatePrizeDistribution(input.PrizeDistribution); err != nil {
		return nil, err
	}

	available, err := s.locationSvc.IsAvailable(ctx, input.LocationID, input.StartTime, input.EndTime)
	if err != nil {
		return nil, fmt.Errorf("failed to check venue availability: %w", err)
	}
	if !available {
		return nil, ErrVenueConflict
	}

	overlapping, err := s.tournamentRepo.CountOverlapping(ctx, input.LocationID,
		input.StartTime, input.EndTime, venueHoldingStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to check venue overlap: %w", err)
	}
	if overlapping > 0 {
		return nil, ErrVenueConflict
	}

	tournament := &models.Tournament{
		ID:                   uuid.NewString(),
		Name:                 input.Name,
		Format:               input.Format,
		GameType:             input.GameType,
		LocationID:           input.LocationID,
		OrganizerID:          input.OrganizerID,
		RegistrationDeadline: input.RegistrationDeadline,
		StartTime:            input.StartTime,
		EndTime:              input.EndTime,
		MinParticipants:      input.MinParticipants,
		MaxParticipants:      input.MaxParticipants,
		EntryFee:             input.EntryFee,
		PrizeDistribution:    input.PrizeDistribution,
		Status:               models.StatusDraft,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament created",
		slog.String("tournament_id", tournament.ID),
		slog.String("format", string(tournament.Format)))
	return tournament, nil
}

// GetByID loads the tournament aggregate: the document itself plus its
// participants and matches, fetched in parallel.
func (s *TournamentService) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		participants, err := s.participantRepo.ListByTournament(gCtx, nil, id, nil)
		if err != nil {
			return err
		}
		tournament.Participants = make([]models.Participant, len(participants))
		for i, p := range participants {
			tournament.Participants[i] = *p
		}
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, nil, id, nil, nil)
		if err != nil {
			return err
		}
		tournament.Matches = make([]models.Match, len(matches))
		for i, m := range matches {
			tournament.Matches[i] = *m
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *TournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.tournamentRepo.List(ctx, filter)
}

// Publish opens a draft tournament for registration.
func (s *TournamentService) Publish(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	return s.transition(ctx, tournamentID, models.StatusRegistration)
}

// CloseRegistration closes an open registration ahead of the deadline.
func (s *TournamentService) CloseRegistration(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	return s.transition(ctx, tournamentID, models.StatusRegistrationClosed)
}

func (s *TournamentService) transition(ctx context.Context, tournamentID string, next models.TournamentStatus) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var tournament *models.Tournament
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Status == next {
			return nil
		}
		if !isValidStatusTransition(tournament.Status, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, tournament.Status, next)
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, next); err != nil {
			return err
		}
		tournament.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament status changed",
		slog.String("tournament_id", tournamentID),
		slog.String("status", string(tournament.Status)))
	return tournament, nil
}

// Start generates the bracket and moves the tournament into play. Bracket
// document, match rows and the status flip commit atomically: a failed
// start leaves the tournament untouched in registration_closed.
func (s *TournamentService) Start(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var tournament *models.Tournament
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}

		if tournament.Status != models.StatusRegistrationClosed {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, tournament.Status, models.StatusInProgress)
		}
		if s.now().Before(tournament.StartTime) {
			return ErrTournamentNotStartable
		}
		if tournament.CurrentParticipants < tournament.MinParticipants {
			return fmt.Errorf("%w: %d of %d", ErrInsufficientParticipants,
				tournament.CurrentParticipants, tournament.MinParticipants)
		}

		participants, err := s.participantRepo.ListByTournament(ctx, exec, tournamentID, nil)
		if err != nil {
			return err
		}
		active := make([]*models.Participant, 0, len(participants))
		for _, p := range participants {
			if p.Status.IsActive() {
				active = append(active, p)
			}
		}

		generator, _ := brackets.ForFormat(tournament.Format)
		result, err := generator.Generate(ctx, brackets.GenerateParams{
			TournamentID: tournamentID,
			Participants: active,
			Seed:         s.bracketSeed(),
		})
		if err != nil {
			return fmt.Errorf("failed to generate bracket for tournament %s: %w", tournamentID, err)
		}

		if err := s.matchRepo.CreateBatch(ctx, exec, result.Matches); err != nil {
			return err
		}

		tournament.Bracket = result.Structure
		tournament.TotalRounds = result.TotalRounds
		tournament.TotalMatches = result.TotalMatches
		tournament.CurrentRound = 1
		tournament.Status = models.StatusInProgress
		return s.tournamentRepo.SaveBracket(ctx, exec, tournament)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament started",
		slog.String("tournament_id", tournamentID),
		slog.Int("total_rounds", tournament.TotalRounds),
		slog.Int("total_matches", tournament.TotalMatches))
	return tournament, nil
}

// Cancel aborts a tournament from any pre-completion state, refunding the
// full entry fee to every participant who has not already withdrawn and
// cancelling unresolved matches. Refunds and the status flip commit as
// one transaction.
func (s *TournamentService) Cancel(ctx context.Context, tournamentID, reason string) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var tournament *models.Tournament
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Status.IsTerminal() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, tournament.Status, models.StatusCancelled)
		}

		participants, err := s.participantRepo.ListByTournament(ctx, exec, tournamentID, nil)
		if err != nil {
			return err
		}
		for _, p := range participants {
			if !p.Status.IsActive() || p.EntryFeePaid == 0 {
				continue
			}
			if _, err := s.creditLedger.Credit(ctx, exec, p.UserID, p.EntryFeePaid); err != nil {
				return fmt.Errorf("failed to refund participant %s: %w", p.ID, err)
			}
		}

		matches, err := s.matchRepo.ListByTournament(ctx, exec, tournamentID, nil, nil)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if m.IsResolved() {
				continue
			}
			m.Status = models.MatchCancelled
			if err := s.matchRepo.UpdateResult(ctx, exec, m); err != nil {
				return err
			}
		}

		if err := s.tournamentRepo.SetCancelled(ctx, exec, tournamentID, reason); err != nil {
			return err
		}
		tournament.Status = models.StatusCancelled
		tournament.CancelReason = &reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament cancelled",
		slog.String("tournament_id", tournamentID),
		slog.String("reason", reason))
	return tournament, nil
}

// AutoAdvanceByTime is the scheduler entrypoint: it closes registrations
// past their deadline, starts closed tournaments whose start time has
// arrived, cancels (with full refunds) those that never reached the
// minimum participant count, and finalizes in-progress tournaments whose
// matches are all resolved but whose completion never committed.
func (s *TournamentService) AutoAdvanceByTime(ctx context.Context) error {
	due, err := s.tournamentRepo.ListDueForAutoTransition(ctx, s.now())
	if err != nil {
		return err
	}

	for _, t := range due {
		switch t.Status {
		case models.StatusRegistration:
			if _, err := s.CloseRegistration(ctx, t.ID); err != nil {
				s.logger.ErrorContext(ctx, "auto close registration failed",
					slog.String("tournament_id", t.ID), slog.Any("error", err))
			}
		case models.StatusRegistrationClosed:
			if t.CurrentParticipants < t.MinParticipants {
				if _, err := s.Cancel(ctx, t.ID, "minimum participant count not reached"); err != nil {
					s.logger.ErrorContext(ctx, "auto cancel failed",
						slog.String("tournament_id", t.ID), slog.Any("error", err))
				}
				continue
			}
			if _, err := s.Start(ctx, t.ID); err != nil {
				s.logger.ErrorContext(ctx, "auto start failed",
					slog.String("tournament_id", t.ID), slog.Any("error", err))
			}
		case models.StatusInProgress:
			if err := s.finalizer.Finalize(ctx, t.ID); err != nil {
				s.logger.ErrorContext(ctx, "auto finalize failed",
					slog.String("tournament_id", t.ID), slog.Any("error", err))
			}
		}
	}
	return nil
}
