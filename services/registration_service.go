package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opencourt/tournament-engine/ledger"
	"github.com/opencourt/tournament-engine/models"
	"github.com/opencourt/tournament-engine/repositories"
)

// RegistrationService handles participant entry and withdrawal with
// escrow. All effects of one call - ledger movement, participant row,
// counter, status flip - commit in a single transaction, serialized per
// tournament.
type RegistrationService struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	creditLedger    ledger.CreditLedger
	locks           *TournamentLocks
	logger          *slog.Logger

	now func() time.Time
}

func NewRegistrationService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	creditLedger ledger.CreditLedger,
	locks *TournamentLocks,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		creditLedger:    creditLedger,
		locks:           locks,
		logger:          logger,
		now:             time.Now,
	}
}

// Register escrows the entry fee and adds the user to the tournament.
// The duplicate check runs before the debit, so retrying after an
// ambiguous failure can never charge the same user twice.
func (s *RegistrationService) Register(ctx context.Context, tournamentID, userID string) (*models.Participant, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var participant *models.Participant
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}

		// Checked before status so that a tournament auto-closed at capacity
		// still reports "full" to late registrants, not "not open".
		if tournament.CurrentParticipants >= tournament.MaxParticipants {
			return ErrTournamentFull
		}
		if tournament.Status != models.StatusRegistration {
			return ErrRegistrationNotOpen
		}
		if s.now().After(tournament.RegistrationDeadline) {
			return ErrRegistrationClosed
		}

		if _, err := s.participantRepo.FindActiveByTournamentAndUser(ctx, exec, tournamentID, userID); err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, repositories.ErrParticipantNotFound) {
			return err
		}

		if _, err := s.creditLedger.Debit(ctx, exec, userID, tournament.EntryFee); err != nil {
			return err
		}

		participant = &models.Participant{
			ID:           uuid.NewString(),
			TournamentID: tournamentID,
			UserID:       userID,
			Status:       models.ParticipantRegistered,
			EntryFeePaid: tournament.EntryFee,
		}
		if err := s.participantRepo.Create(ctx, exec, participant); err != nil {
			if errors.Is(err, repositories.ErrParticipantConflict) {
				return ErrAlreadyRegistered
			}
			return err
		}

		newCount := tournament.CurrentParticipants + 1
		newStatus := tournament.Status
		if newCount == tournament.MaxParticipants {
			newStatus = models.StatusRegistrationClosed
		}
		return s.tournamentRepo.UpdateRegistrationState(ctx, exec, tournamentID, newCount, newStatus)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "participant registered",
		slog.String("tournament_id", tournamentID),
		slog.String("user_id", userID),
		slog.Int64("entry_fee", participant.EntryFeePaid))
	return participant, nil
}

// Withdraw refunds the full entry fee and frees the spot. Only allowed
// while registration is open; later exits go through cancellation.
func (s *RegistrationService) Withdraw(ctx context.Context, tournamentID, userID string) error {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}

		if tournament.Status != models.StatusRegistration {
			return ErrRegistrationNotOpen
		}

		participant, err := s.participantRepo.FindActiveByTournamentAndUser(ctx, exec, tournamentID, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}

		if err := s.participantRepo.UpdateStatus(ctx, exec, participant.ID, models.ParticipantWithdrew); err != nil {
			return err
		}
		if _, err := s.creditLedger.Credit(ctx, exec, userID, participant.EntryFeePaid); err != nil {
			return err
		}
		return s.tournamentRepo.UpdateRegistrationState(ctx, exec, tournamentID,
			tournament.CurrentParticipants-1, tournament.Status)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "participant withdrew",
		slog.String("tournament_id", tournamentID),
		slog.String("user_id", userID))
	return nil
}

// ListByTournament returns the tournament's participants, optionally
// filtered by status.
func (s *RegistrationService) ListByTournament(ctx context.Context, tournamentID string, status *models.ParticipantStatus) ([]*models.Participant, error) {
	participants, err := s.participantRepo.ListByTournament(ctx, nil, tournamentID, status)
	if err != nil {
		return nil, err
	}
	return participants, nil
}
