package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opencourt/tournament-engine/repositories"
)

type postgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) CreditLedger {
	return &postgresLedger{db: db}
}

func (l *postgresLedger) getExecutor(exec repositories.SQLExecutor) repositories.SQLExecutor {
	if exec != nil {
		return exec
	}
	return l.db
}

func (l *postgresLedger) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.db.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE user_id = $1`, userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance for user %s: %w", userID, err)
	}
	return balance, nil
}

func (l *postgresLedger) Debit(ctx context.Context, exec repositories.SQLExecutor, userID string, amount int64) (int64, error) {
	executor := l.getExecutor(exec)

	// The balance >= amount guard makes the read-check-write atomic; zero
	// affected rows means the user lacks funds (or has no account).
	var newBalance int64
	err := executor.QueryRowContext(ctx, `
		UPDATE balances
		SET balance = balance - $1
		WHERE user_id = $2 AND balance >= $1
		RETURNING balance`, amount, userID,
	).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit user %s: %w", userID, err)
	}
	return newBalance, nil
}

func (l *postgresLedger) Credit(ctx context.Context, exec repositories.SQLExecutor, userID string, amount int64) (int64, error) {
	executor := l.getExecutor(exec)

	var newBalance int64
	err := executor.QueryRowContext(ctx, `
		INSERT INTO balances (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = balances.balance + $2
		RETURNING balance`, userID, amount,
	).Scan(&newBalance)
	if err != nil {
		return 0, fmt.Errorf("failed to credit user %s: %w", userID, err)
	}
	return newBalance, nil
}
