package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"fintrack/internal/domain/account"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db Querier
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts an account whose balance starts at its initial balance
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, owner_id, name, account_type, currency, initial_balance, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		acc.ID, acc.OwnerID, acc.Name, acc.AccountType, acc.Currency,
		acc.InitialBalance, acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	acc.Balance = acc.InitialBalance
	return nil
}

// GetByID retrieves an account and its cards
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := `
		SELECT id, owner_id, name, account_type, currency, initial_balance, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var acc account.Account
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&acc.ID, &acc.OwnerID, &acc.Name, &acc.AccountType, &acc.Currency,
		&acc.InitialBalance, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	cards, err := r.listCards(ctx, []string{acc.ID})
	if err != nil {
		return nil, err
	}
	acc.CreditCards = cards[acc.ID]
	return &acc, nil
}

// ListByOwnerID retrieves all accounts for a specific owner
func (r *AccountRepository) ListByOwnerID(ctx context.Context, ownerID string) ([]*account.Account, error) {
	query := `
		SELECT id, owner_id, name, account_type, currency, initial_balance, balance, created_at, updated_at
		FROM accounts
		WHERE owner_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	var ids []string
	for rows.Next() {
		var acc account.Account
		if err := rows.Scan(
			&acc.ID, &acc.OwnerID, &acc.Name, &acc.AccountType, &acc.Currency,
			&acc.InitialBalance, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acc)
		ids = append(ids, acc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	if len(ids) == 0 {
		return accounts, nil
	}

	cards, err := r.listCards(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		acc.CreditCards = cards[acc.ID]
	}
	return accounts, nil
}

// AddCreditCard attaches a card to an existing account
func (r *AccountRepository) AddCreditCard(ctx context.Context, card *account.CreditCard) error {
	query := `
		INSERT INTO credit_cards (id, account_id, name, credit_limit, closing_day, due_day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		card.ID, card.AccountID, card.Name, card.Limit, card.ClosingDay, card.DueDay, card.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return account.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to add credit card: %w", err)
	}
	return nil
}

func (r *AccountRepository) listCards(ctx context.Context, accountIDs []string) (map[string][]account.CreditCard, error) {
	query := `
		SELECT id, account_id, name, credit_limit, closing_day, due_day, created_at
		FROM credit_cards
		WHERE account_id = ANY($1)
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list credit cards: %w", err)
	}
	defer rows.Close()

	cards := make(map[string][]account.CreditCard)
	for rows.Next() {
		var c account.CreditCard
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Limit, &c.ClosingDay, &c.DueDay, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit card: %w", err)
		}
		cards[c.AccountID] = append(cards[c.AccountID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credit cards: %w", err)
	}
	return cards, nil
}
