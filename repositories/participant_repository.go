package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/opencourt/tournament-engine/models"
)

var (
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrParticipantConflict = errors.New("participant conflict: user already registered for this tournament")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	FindActiveByTournamentAndUser(ctx context.Context, exec SQLExecutor, tournamentID, userID string) (*models.Participant, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, statusFilter *models.ParticipantStatus) ([]*models.Participant, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id string, status models.ParticipantStatus) error
	// ApplyMatchResult folds one match result into the running statistics
	// as a single atomic increment, so parallel submissions touching the
	// same participant cannot lose updates.
	ApplyMatchResult(ctx context.Context, exec SQLExecutor, id string, score int, won bool) error
	SetEliminated(ctx context.Context, exec SQLExecutor, id string, round int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantColumns = `
	id, tournament_id, user_id, status, entry_fee_paid,
	matches_played, matches_won, matches_lost,
	total_score, best_score, average_score, eliminated_in_round, created_at`

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO participants (id, tournament_id, user_id, status, entry_fee_paid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := executor.QueryRowContext(ctx, query,
		p.ID, p.TournamentID, p.UserID, p.Status, p.EntryFeePaid,
	).Scan(&p.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Partial unique index over (tournament_id, user_id) where
			// status != 'withdrew'.
			if pqErr.Constraint == "participants_active_tournament_user_key" {
				return ErrParticipantConflict
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) FindActiveByTournamentAndUser(ctx context.Context, exec SQLExecutor, tournamentID, userID string) (*models.Participant, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + participantColumns + `
		FROM participants
		WHERE tournament_id = $1 AND user_id = $2 AND status != $3`

	p := &models.Participant{}
	err := r.scanParticipant(executor.QueryRowContext(ctx, query, tournamentID, userID, models.ParticipantWithdrew), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, statusFilter *models.ParticipantStatus) ([]*models.Participant, error) {
	executor := r.getExecutor(exec)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + participantColumns + ` FROM participants WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(len(args)+1))
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY created_at ASC, id ASC")

	rows, err := executor.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p := &models.Participant{}
		if scanErr := r.scanParticipant(rows, p); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id string, status models.ParticipantStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE participants SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) ApplyMatchResult(ctx context.Context, exec SQLExecutor, id string, score int, won bool) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE participants
		SET matches_played = matches_played + 1,
		    matches_won = matches_won + CASE WHEN $1 THEN 1 ELSE 0 END,
		    matches_lost = matches_lost + CASE WHEN $1 THEN 0 ELSE 1 END,
		    total_score = total_score + $2,
		    best_score = GREATEST(best_score, $2),
		    average_score = (total_score + $2)::double precision / (matches_played + 1)
		WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, won, score, id)
	if err != nil {
		return fmt.Errorf("failed to apply match result to participant stats: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) SetEliminated(ctx context.Context, exec SQLExecutor, id string, round int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE participants SET eliminated_in_round = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, round, id)
	if err != nil {
		return fmt.Errorf("failed to set participant elimination round: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) scanParticipant(row rowScanner, p *models.Participant) error {
	return row.Scan(
		&p.ID, &p.TournamentID, &p.UserID, &p.Status, &p.EntryFeePaid,
		&p.MatchesPlayed, &p.MatchesWon, &p.MatchesLost,
		&p.TotalScore, &p.BestScore, &p.AverageScore, &p.EliminatedInRound, &p.CreatedAt,
	)
}
