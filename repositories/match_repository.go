package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/opencourt/tournament-engine/models"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, round *int, statusFilter *models.MatchStatus) ([]*models.Match, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, m *models.Match) error
	// FillSlot sets a player slot only if it is still empty and reports
	// whether the write happened. Sibling winners racing into the same
	// downstream match each target their own slot, so a lost race means a
	// programming error rather than a retry.
	FillSlot(ctx context.Context, exec SQLExecutor, id string, slot int, userID string) (bool, error)
	CountUnresolved(ctx context.Context, exec SQLExecutor, tournamentID string) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, round, idx, player1_id, player2_id, is_bye,
	status, winner_id, score1, score2, next_match_id, next_match_slot,
	completed_at, created_at`

func (r *postgresMatchRepository) CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (
			id, tournament_id, round, idx, player1_id, player2_id, is_bye,
			status, winner_id, next_match_id, next_match_slot, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, m := range matches {
		if _, err := executor.ExecContext(ctx, query,
			m.ID, m.TournamentID, m.Round, m.Index, m.Player1ID, m.Player2ID, m.IsBye,
			m.Status, m.WinnerID, m.NextMatchID, m.NextMatchSlot, m.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to create match %s: %w", m.ID, err)
		}
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	m := &models.Match{}
	err := r.scanMatch(executor.QueryRowContext(ctx, query, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %s: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, round *int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	executor := r.getExecutor(exec)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	if round != nil {
		queryBuilder.WriteString(" AND round = $" + strconv.Itoa(len(args)+1))
		args = append(args, *round)
	}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(len(args)+1))
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY round ASC NULLS LAST, idx ASC")

	rows, err := executor.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		if scanErr := r.scanMatch(rows, m); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET status = $1, winner_id = $2, score1 = $3, score2 = $4, completed_at = $5
		WHERE id = $6`
	result, err := executor.ExecContext(ctx, query,
		m.Status, m.WinnerID, m.Score1, m.Score2, m.CompletedAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update match result for %s: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) FillSlot(ctx context.Context, exec SQLExecutor, id string, slot int, userID string) (bool, error) {
	executor := r.getExecutor(exec)

	var query string
	switch slot {
	case 1:
		query = `UPDATE matches SET player1_id = $1 WHERE id = $2 AND player1_id IS NULL`
	case 2:
		query = `UPDATE matches SET player2_id = $1 WHERE id = $2 AND player2_id IS NULL`
	default:
		return false, fmt.Errorf("invalid match slot %d", slot)
	}

	result, err := executor.ExecContext(ctx, query, userID, id)
	if err != nil {
		return false, fmt.Errorf("failed to fill slot %d of match %s: %w", slot, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *postgresMatchRepository) CountUnresolved(ctx context.Context, exec SQLExecutor, tournamentID string) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(*)
		FROM matches
		WHERE tournament_id = $1 AND status IN ($2, $3)`

	var count int
	err := executor.QueryRowContext(ctx, query, tournamentID,
		models.MatchScheduled, models.MatchInProgress).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved matches for tournament %s: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) scanMatch(row rowScanner, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.Index, &m.Player1ID, &m.Player2ID, &m.IsBye,
		&m.Status, &m.WinnerID, &m.Score1, &m.Score2, &m.NextMatchID, &m.NextMatchSlot,
		&m.CompletedAt, &m.CreatedAt,
	)
}
