package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/opencourt/tournament-engine/models"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict for this organizer")
)

type ListTournamentsFilter struct {
	Status       *models.TournamentStatus
	Format       *models.TournamentFormat
	GameType     *string
	LocationID   *string
	StartsAfter  *time.Time
	StartsBefore *time.Time
	Limit        int
	Offset       int
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	CountOverlapping(ctx context.Context, locationID string, start, end time.Time, statuses []models.TournamentStatus) (int, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id string, status models.TournamentStatus) error
	UpdateRegistrationState(ctx context.Context, exec SQLExecutor, id string, currentParticipants int, status models.TournamentStatus) error
	SaveBracket(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	SetCancelled(ctx context.Context, exec SQLExecutor, id, reason string) error
	SetResults(ctx context.Context, exec SQLExecutor, id string, winner, runnerUp, third *string) error
	SetCurrentRound(ctx context.Context, exec SQLExecutor, id string, round int) error
	ListDueForAutoTransition(ctx context.Context, now time.Time) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, format, game_type, location_id, organizer_id,
	registration_deadline, start_time, end_time,
	min_participants, max_participants, current_participants,
	entry_fee, prize_distribution, status, bracket,
	total_rounds, total_matches, current_round,
	winner_id, runner_up_id, third_place_id, cancel_reason, created_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)

	prizes, err := json.Marshal(t.PrizeDistribution)
	if err != nil {
		return fmt.Errorf("failed to marshal prize distribution: %w", err)
	}

	query := `
		INSERT INTO tournaments (
			id, name, format, game_type, location_id, organizer_id,
			registration_deadline, start_time, end_time,
			min_participants, max_participants, entry_fee, prize_distribution, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`

	err = executor.QueryRowContext(ctx, query,
		t.ID, t.Name, t.Format, t.GameType, t.LocationID, t.OrganizerID,
		t.RegistrationDeadline, t.StartTime, t.EndTime,
		t.MinParticipants, t.MaxParticipants, t.EntryFee, prizes, t.Status,
	).Scan(&t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t, err := scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %s: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Format != nil {
		query += fmt.Sprintf(" AND format = $%d", argID)
		args = append(args, *filter.Format)
		argID++
	}
	if filter.GameType != nil {
		query += fmt.Sprintf(" AND game_type = $%d", argID)
		args = append(args, *filter.GameType)
		argID++
	}
	if filter.LocationID != nil {
		query += fmt.Sprintf(" AND location_id = $%d", argID)
		args = append(args, *filter.LocationID)
		argID++
	}
	if filter.StartsAfter != nil {
		query += fmt.Sprintf(" AND start_time >= $%d", argID)
		args = append(args, *filter.StartsAfter)
		argID++
	}
	if filter.StartsBefore != nil {
		query += fmt.Sprintf(" AND start_time <= $%d", argID)
		args = append(args, *filter.StartsBefore)
		argID++
	}

	// Stable pagination: start_time with the id tiebreaker.
	query += " ORDER BY start_time ASC, id ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) CountOverlapping(ctx context.Context, locationID string, start, end time.Time, statuses []models.TournamentStatus) (int, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT COUNT(*)
		FROM tournaments
		WHERE location_id = $1
		  AND status = ANY($2)
		  AND start_time < $4
		  AND end_time > $3`

	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	var count int
	err := executor.QueryRowContext(ctx, query, locationID, pq.Array(statusStrings), start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping tournaments at %s: %w", locationID, err)
	}
	return count, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id string, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateRegistrationState(ctx context.Context, exec SQLExecutor, id string, currentParticipants int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET current_participants = $1, status = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, currentParticipants, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SaveBracket(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)

	bracket, err := json.Marshal(t.Bracket)
	if err != nil {
		return fmt.Errorf("failed to marshal bracket: %w", err)
	}

	query := `
		UPDATE tournaments
		SET bracket = $1, total_rounds = $2, total_matches = $3, current_round = $4, status = $5
		WHERE id = $6`
	result, err := executor.ExecContext(ctx, query,
		bracket, t.TotalRounds, t.TotalMatches, t.CurrentRound, t.Status, t.ID)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetCancelled(ctx context.Context, exec SQLExecutor, id, reason string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1, cancel_reason = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, models.StatusCancelled, reason, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetResults(ctx context.Context, exec SQLExecutor, id string, winner, runnerUp, third *string) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET status = $1, winner_id = $2, runner_up_id = $3, third_place_id = $4
		WHERE id = $5`
	result, err := executor.ExecContext(ctx, query, models.StatusCompleted, winner, runnerUp, third, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetCurrentRound(ctx context.Context, exec SQLExecutor, id string, round int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET current_round = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, round, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// ListDueForAutoTransition returns tournaments the scheduler may need to
// move along: open registrations past their deadline, closed ones past
// their start time, and in-progress ones, whose completion may still be
// pending after a crash.
func (r *postgresTournamentRepository) ListDueForAutoTransition(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE (status = $1 AND registration_deadline <= $3)
		   OR (status = $2 AND start_time <= $3)
		   OR status = $4`

	rows, err := executor.QueryContext(ctx, query,
		models.StatusRegistration, models.StatusRegistrationClosed, now, models.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments for auto transition: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament for auto transition: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	var prizes, bracket []byte

	err := row.Scan(
		&t.ID, &t.Name, &t.Format, &t.GameType, &t.LocationID, &t.OrganizerID,
		&t.RegistrationDeadline, &t.StartTime, &t.EndTime,
		&t.MinParticipants, &t.MaxParticipants, &t.CurrentParticipants,
		&t.EntryFee, &prizes, &t.Status, &bracket,
		&t.TotalRounds, &t.TotalMatches, &t.CurrentRound,
		&t.WinnerID, &t.RunnerUpID, &t.ThirdPlaceID, &t.CancelReason, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(prizes) > 0 {
		if err := json.Unmarshal(prizes, &t.PrizeDistribution); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prize distribution: %w", err)
		}
	}
	if len(bracket) > 0 {
		t.Bracket = &models.BracketStructure{}
		if err := json.Unmarshal(bracket, t.Bracket); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bracket: %w", err)
		}
	}
	return t, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" && pqErr.Constraint == "tournaments_organizer_id_name_key" {
			return ErrTournamentNameConflict
		}
	}
	return err
}
