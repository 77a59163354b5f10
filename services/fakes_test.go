package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/opencourt/tournament-engine/ledger"
	"github.com/opencourt/tournament-engine/location"
	"github.com/opencourt/tournament-engine/models"
	"github.com/opencourt/tournament-engine/repositories"
)

// The fakes below back the service tests with in-memory state guarded by
// a mutex, so the concurrency tests exercise the real locking in the
// services rather than database serialization.

type memTransactor struct{}

func (memTransactor) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type memTournamentRepo struct {
	mu    sync.Mutex
	store map[string]*models.Tournament
}

func newMemTournamentRepo() *memTournamentRepo {
	return &memTournamentRepo{store: make(map[string]*models.Tournament)}
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	c := *t
	return &c
}

func (r *memTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.store {
		if existing.OrganizerID == t.OrganizerID && existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.CreatedAt = time.Now().UTC()
	r.store[t.ID] = cloneTournament(t)
	return nil
}

func (r *memTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id string) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.store[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return cloneTournament(t), nil
}

func (r *memTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]models.Tournament, 0)
	for _, t := range r.store {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Format != nil && t.Format != *filter.Format {
			continue
		}
		if filter.GameType != nil && t.GameType != *filter.GameType {
			continue
		}
		if filter.LocationID != nil && t.LocationID != *filter.LocationID {
			continue
		}
		if filter.StartsAfter != nil && t.StartTime.Before(*filter.StartsAfter) {
			continue
		}
		if filter.StartsBefore != nil && t.StartTime.After(*filter.StartsBefore) {
			continue
		}
		matched = append(matched, *cloneTournament(t))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].StartTime.Before(matched[j].StartTime)
		}
		return matched[i].ID < matched[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []models.Tournament{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *memTournamentRepo) CountOverlapping(ctx context.Context, locationID string, start, end time.Time, statuses []models.TournamentStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, t := range r.store {
		if t.LocationID != locationID {
			continue
		}
		held := false
		for _, s := range statuses {
			if t.Status == s {
				held = true
				break
			}
		}
		if held && t.StartTime.Before(end) && t.EndTime.After(start) {
			count++
		}
	}
	return count, nil
}

func (r *memTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id string, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.store[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *memTournamentRepo) UpdateRegistrationState(ctx context.Context, exec repositories.SQLExecutor, id string, currentParticipants int, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.store[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.CurrentParticipants = currentParticipants
	t.Status = status
	return nil
}

func (r *memTournamentRepo) SaveBracket(ctx context.Context, exec repositories.SQLExecutor, in *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.store[in.ID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Bracket = in.Bracket
	t.TotalRounds = in.TotalRounds
	t.TotalMatches = in.TotalMatches
	t.CurrentRound = in.CurrentRound
	t.Status = in.Status
	return nil
}

func (r *memTournamentRepo) SetCancelled(ctx context.Context, exec repositories.SQLExecutor, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.store[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = models.StatusCancelled
	t.CancelReason = &reason
	return nil
}

func (r *memTournamentRepo) SetResults(ctx context.Context, exec repositories.SQLExecutor, id string, winner, runnerUp, third *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.store[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = models.StatusCompleted
	t.WinnerID = winner
	t.RunnerUpID = runnerUp
	t.ThirdPlaceID = third
	return nil
}

func (r *memTournamentRepo) SetCurrentRound(ctx context.Context, exec repositories.SQLExecutor, id string, round int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.store[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.CurrentRound = round
	return nil
}

func (r *memTournamentRepo) ListDueForAutoTransition(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.Tournament
	for _, t := range r.store {
		switch {
		case t.Status == models.StatusRegistration && !t.RegistrationDeadline.After(now):
			due = append(due, cloneTournament(t))
		case t.Status == models.StatusRegistrationClosed && !t.StartTime.After(now):
			due = append(due, cloneTournament(t))
		case t.Status == models.StatusInProgress:
			due = append(due, cloneTournament(t))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

type memParticipantRepo struct {
	mu    sync.Mutex
	store map[string]*models.Participant
	order []string
}

func newMemParticipantRepo() *memParticipantRepo {
	return &memParticipantRepo{store: make(map[string]*models.Participant)}
}

func cloneParticipant(p *models.Participant) *models.Participant {
	c := *p
	return &c
}

func (r *memParticipantRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.store {
		if existing.TournamentID == p.TournamentID && existing.UserID == p.UserID && existing.Status.IsActive() {
			return repositories.ErrParticipantConflict
		}
	}
	p.CreatedAt = time.Now().UTC()
	r.store[p.ID] = cloneParticipant(p)
	r.order = append(r.order, p.ID)
	return nil
}

func (r *memParticipantRepo) FindActiveByTournamentAndUser(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID string) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.store {
		if p.TournamentID == tournamentID && p.UserID == userID && p.Status.IsActive() {
			return cloneParticipant(p), nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *memParticipantRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID string, statusFilter *models.ParticipantStatus) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*models.Participant, 0)
	for _, id := range r.order {
		p := r.store[id]
		if p.TournamentID != tournamentID {
			continue
		}
		if statusFilter != nil && p.Status != *statusFilter {
			continue
		}
		result = append(result, cloneParticipant(p))
	}
	return result, nil
}

func (r *memParticipantRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id string, status models.ParticipantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.Status = status
	return nil
}

func (r *memParticipantRepo) ApplyMatchResult(ctx context.Context, exec repositories.SQLExecutor, id string, score int, won bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.RecordResult(score, won)
	return nil
}

func (r *memParticipantRepo) SetEliminated(ctx context.Context, exec repositories.SQLExecutor, id string, round int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.EliminatedInRound = &round
	return nil
}

type memMatchRepo struct {
	mu    sync.Mutex
	store map[string]*models.Match
	order []string
}

func newMemMatchRepo() *memMatchRepo {
	return &memMatchRepo{store: make(map[string]*models.Match)}
}

func cloneMatch(m *models.Match) *models.Match {
	c := *m
	return &c
}

func (r *memMatchRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range matches {
		r.store[m.ID] = cloneMatch(m)
		r.order = append(r.order, m.ID)
	}
	return nil
}

func (r *memMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id string) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.store[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (r *memMatchRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID string, round *int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*models.Match, 0)
	for _, id := range r.order {
		m := r.store[id]
		if m.TournamentID != tournamentID {
			continue
		}
		if round != nil && (m.Round == nil || *m.Round != *round) {
			continue
		}
		if statusFilter != nil && m.Status != *statusFilter {
			continue
		}
		result = append(result, cloneMatch(m))
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.Round == nil && b.Round == nil:
			return a.Index < b.Index
		case a.Round == nil:
			return false
		case b.Round == nil:
			return true
		case *a.Round != *b.Round:
			return *a.Round < *b.Round
		default:
			return a.Index < b.Index
		}
	})
	return result, nil
}

func (r *memMatchRepo) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, in *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.store[in.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = in.Status
	m.WinnerID = in.WinnerID
	m.Score1 = in.Score1
	m.Score2 = in.Score2
	m.CompletedAt = in.CompletedAt
	return nil
}

func (r *memMatchRepo) FillSlot(ctx context.Context, exec repositories.SQLExecutor, id string, slot int, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.store[id]
	if !ok {
		return false, repositories.ErrMatchNotFound
	}
	switch slot {
	case 1:
		if m.Player1ID != nil {
			return false, nil
		}
		m.Player1ID = &userID
	case 2:
		if m.Player2ID != nil {
			return false, nil
		}
		m.Player2ID = &userID
	default:
		return false, repositories.ErrMatchNotFound
	}
	return true, nil
}

func (r *memMatchRepo) CountUnresolved(ctx context.Context, exec repositories.SQLExecutor, tournamentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.store {
		if m.TournamentID != tournamentID {
			continue
		}
		if m.Status == models.MatchScheduled || m.Status == models.MatchInProgress {
			count++
		}
	}
	return count, nil
}

type memLedger struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[string]int64)}
}

func (l *memLedger) SetBalance(userID string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] = amount
}

func (l *memLedger) GetBalance(ctx context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

func (l *memLedger) Debit(ctx context.Context, exec repositories.SQLExecutor, userID string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[userID] < amount {
		return 0, ledger.ErrInsufficientFunds
	}
	l.balances[userID] -= amount
	return l.balances[userID], nil
}

func (l *memLedger) Credit(ctx context.Context, exec repositories.SQLExecutor, userID string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += amount
	return l.balances[userID], nil
}

// testEnv wires the three services over the in-memory fakes with a
// controllable clock and bracket seed.
type testEnv struct {
	tournaments  *memTournamentRepo
	participants *memParticipantRepo
	matches      *memMatchRepo
	creditLedger *memLedger

	clock time.Time

	tournamentSvc   *TournamentService
	registrationSvc *RegistrationService
	matchSvc        *MatchService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		tournaments:  newMemTournamentRepo(),
		participants: newMemParticipantRepo(),
		matches:      newMemMatchRepo(),
		creditLedger: newMemLedger(),
		clock:        time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locks := NewTournamentLocks()
	tx := memTransactor{}
	now := func() time.Time { return env.clock }

	env.tournamentSvc = NewTournamentService(
		tx, env.tournaments, env.participants, env.matches,
		env.creditLedger, location.NewStaticService(nil), locks, logger,
	)
	env.tournamentSvc.now = now
	env.tournamentSvc.bracketSeed = func() int64 { return 42 }

	env.registrationSvc = NewRegistrationService(
		tx, env.tournaments, env.participants, env.creditLedger, locks, logger,
	)
	env.registrationSvc.now = now

	env.matchSvc = NewMatchService(
		tx, env.tournaments, env.participants, env.matches,
		env.creditLedger, locks, logger,
	)
	env.matchSvc.now = now

	return env
}
