package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/shared/apperr"
)

// Service contains the business logic for account operations
type Service struct {
	repo  Repository
	newID func() string
	now   func() time.Time
}

// NewService creates a new account service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, newID: uuid.NewString, now: time.Now}
}

// CreateAccount creates a new account with business validation
func (s *Service) CreateAccount(ctx context.Context, params CreateParams) (*Account, error) {
	// Apply default currency if not provided
	if params.Currency == "" {
		params.Currency = "BRL"
	}
	if params.AccountType == "" {
		params.AccountType = "CHECKING"
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	account := &Account{
		ID:             s.newID(),
		OwnerID:        params.OwnerID,
		Name:           params.Name,
		AccountType:    params.AccountType,
		Currency:       params.Currency,
		InitialBalance: params.InitialBalance,
		Balance:        params.InitialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount retrieves an account by ID and verifies ownership.
// Accounts of other owners are reported as not found.
func (s *Service) GetAccount(ctx context.Context, accountID, ownerID string) (*Account, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.OwnerID != ownerID {
		return nil, ErrAccountNotFound
	}

	return account, nil
}

// ListAccounts retrieves all accounts for a specific owner
func (s *Service) ListAccounts(ctx context.Context, ownerID string) ([]*Account, error) {
	if ownerID == "" {
		return nil, apperr.Invalid("ownerId", "owner is required")
	}

	return s.repo.ListByOwnerID(ctx, ownerID)
}

// AddCreditCard attaches a new card to an owned account
func (s *Service) AddCreditCard(ctx context.Context, ownerID, accountID string, params CreditCardParams) (*CreditCard, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.GetAccount(ctx, accountID, ownerID); err != nil {
		return nil, err
	}

	card := &CreditCard{
		ID:         s.newID(),
		AccountID:  accountID,
		Name:       params.Name,
		Limit:      params.Limit,
		ClosingDay: params.ClosingDay,
		DueDay:     params.DueDay,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.AddCreditCard(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// FindCreditCard locates a card among the owner's accounts.
func (s *Service) FindCreditCard(ctx context.Context, ownerID, cardID string) (*Account, *CreditCard, error) {
	accounts, err := s.repo.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	for _, account := range accounts {
		if card := account.Card(cardID); card != nil {
			return account, card, nil
		}
	}

	return nil, nil, ErrCreditCardNotFound
}

// IsNotFound reports whether err means the account or card does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
