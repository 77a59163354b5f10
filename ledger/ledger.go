// Package ledger models the external credit ledger holding user balances.
// Escrowed entry fees move through Debit/Credit; both compose into the
// same transaction as the tournament-state mutation via SQLExecutor.
package ledger

import (
	"context"
	"errors"

	"github.com/opencourt/tournament-engine/repositories"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

type CreditLedger interface {
	GetBalance(ctx context.Context, userID string) (int64, error)

	// Debit withdraws amount from the user's balance and returns the new
	// balance, or ErrInsufficientFunds without mutation.
	Debit(ctx context.Context, exec repositories.SQLExecutor, userID string, amount int64) (int64, error)

	// Credit deposits amount and returns the new balance.
	Credit(ctx context.Context, exec repositories.SQLExecutor, userID string, amount int64) (int64, error)
}
