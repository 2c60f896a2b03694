package invoice

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fintrack/internal/domain/account"
	"fintrack/internal/domain/category"
	"fintrack/internal/domain/transaction"
	"fintrack/internal/shared/apperr"
	"fintrack/internal/shared/calendar"
)

// AccountReader lists an owner's accounts and cards.
type AccountReader interface {
	ListAccounts(ctx context.Context, ownerID string) ([]*account.Account, error)
	FindCreditCard(ctx context.Context, ownerID, cardID string) (*account.Account, *account.CreditCard, error)
}

// TransactionReader reads the history invoices are derived from.
type TransactionReader interface {
	List(ctx context.Context, ownerID string, filter transaction.Filter) ([]*transaction.Transaction, error)
	FindByReconciliationKey(ctx context.Context, ownerID, key string) (*transaction.Transaction, error)
}

// CategoryEnsurer provides the hidden invoice payment category.
type CategoryEnsurer interface {
	EnsureHidden(ctx context.Context, ownerID, name, categoryType string) (*category.Category, error)
}

// PaymentRecorder writes payments through the ledger.
type PaymentRecorder interface {
	Create(ctx context.Context, ownerID string, params transaction.CreateParams) (*transaction.Transaction, error)
}

// Service derives invoices from card transactions and records payments.
// No invoice is ever persisted.
type Service struct {
	accounts     AccountReader
	transactions TransactionReader
	categories   CategoryEnsurer
	ledger       PaymentRecorder
	locker       transaction.Locker
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewService(accounts AccountReader, transactions TransactionReader, categories CategoryEnsurer, ledger PaymentRecorder, locker transaction.Locker, loc *time.Location, logger *zap.Logger) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		categories:   categories,
		ledger:       ledger,
		locker:       locker,
		logger:       logger,
		loc:          loc,
		now:          time.Now,
	}
}

type cardRef struct {
	account *account.Account
	card    *account.CreditCard
}

type bucketKey struct {
	cardID string
	cycle  Cycle
}

// List computes every invoice of the owner's cards as seen on today,
// sorted by card, then year and month.
func (s *Service) List(ctx context.Context, ownerID string, today civil.Date) ([]*Invoice, error) {
	accounts, err := s.accounts.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	cards := make(map[string]cardRef)
	for _, acc := range accounts {
		for i := range acc.CreditCards {
			card := &acc.CreditCards[i]
			cards[card.ID] = cardRef{account: acc, card: card}
		}
	}
	if len(cards) == 0 {
		return []*Invoice{}, nil
	}

	cardTxs, err := s.transactions.List(ctx, ownerID, transaction.Filter{CardOnly: true})
	if err != nil {
		return nil, err
	}

	totals := make(map[bucketKey]decimal.Decimal)
	for _, t := range cardTxs {
		ref, ok := cards[*t.CreditCardID]
		if !ok {
			continue
		}
		key := bucketKey{cardID: ref.card.ID, cycle: CycleOf(t.Date, ref.card.ClosingDay)}
		switch t.Type {
		case transaction.TypeExpense:
			totals[key] = totals[key].Add(t.Amount)
		case transaction.TypeIncome:
			totals[key] = totals[key].Sub(t.Amount)
		default:
			continue
		}
	}

	transfers, err := s.transactions.List(ctx, ownerID, transaction.Filter{Type: transaction.TypeTransfer})
	if err != nil {
		return nil, err
	}

	invoices := make([]*Invoice, 0, len(totals))
	for key, amount := range totals {
		ref := cards[key.cardID]
		inv := &Invoice{
			AccountID:         ref.account.ID,
			CreditCardID:      ref.card.ID,
			CardName:          ref.card.Name,
			CardLimit:         ref.card.Limit,
			Month:             int(key.cycle.Month),
			Year:              key.cycle.Year,
			Amount:            amount,
			DueDate:           DueDate(ref.card, key.cycle),
			ClosingDate:       ClosingDate(ref.card, key.cycle),
			ReconciliationKey: transaction.ReconciliationKey(ref.card.ID, key.cycle.Month, key.cycle.Year),
		}
		inv.Status = status(inv, today, settled(transfers, inv.ReconciliationKey))
		invoices = append(invoices, inv)
	}

	sort.Slice(invoices, func(i, j int) bool {
		a, b := invoices[i], invoices[j]
		if a.CardName != b.CardName {
			return a.CardName < b.CardName
		}
		if a.CreditCardID != b.CreditCardID {
			return a.CreditCardID < b.CreditCardID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return invoices, nil
}

func status(inv *Invoice, today civil.Date, paid bool) Status {
	switch {
	case paid:
		return StatusPaid
	case today.After(inv.DueDate):
		return StatusOverdue
	case !today.Before(inv.ClosingDate):
		return StatusClosed
	}
	return StatusOpen
}

// settled matches the structured key first and falls back to the
// description for payments recorded before the key had its own field.
func settled(transfers []*transaction.Transaction, key string) bool {
	for _, t := range transfers {
		if t.ReconciliationKey != nil && *t.ReconciliationKey == key {
			return true
		}
	}
	for _, t := range transfers {
		if strings.Contains(t.Description, key) {
			return true
		}
	}
	return false
}

// Pay records a paid transfer settling one cycle. A cycle that already has
// a payment is rejected with ErrDuplicatePayment.
func (s *Service) Pay(ctx context.Context, ownerID string, params PayParams) (*transaction.Transaction, error) {
	if params.Month < 1 || params.Month > 12 {
		return nil, apperr.Invalid("month", "month must be between 1 and 12")
	}
	if params.Year < 1 {
		return nil, apperr.Invalid("year", "year is required")
	}
	if params.SourceAccountID == "" {
		return nil, apperr.Invalid("sourceAccountId", "source account is required")
	}
	if params.Amount.IsNegative() {
		return nil, apperr.Invalid("amount", "amount must be greater than zero")
	}
	if !transaction.WholeCents(params.Amount) {
		return nil, apperr.Invalid("amount", "amount must have at most 2 decimal places")
	}

	_, card, err := s.accounts.FindCreditCard(ctx, ownerID, params.CreditCardID)
	if err != nil {
		return nil, err
	}

	cycle := Cycle{Month: time.Month(params.Month), Year: params.Year}
	key := transaction.ReconciliationKey(card.ID, cycle.Month, cycle.Year)

	release, err := s.locker.Acquire(ctx, "invoice:"+key)
	if err != nil {
		return nil, fmt.Errorf("acquire invoice lock: %w", err)
	}
	defer release()

	paid, err := s.isPaid(ctx, ownerID, key)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, fmt.Errorf("%s: %w", key, apperr.ErrDuplicatePayment)
	}

	amount := params.Amount
	if amount.IsZero() {
		amount, err = s.cycleAmount(ctx, ownerID, card, cycle)
		if err != nil {
			return nil, err
		}
		if !amount.IsPositive() {
			return nil, apperr.Invalid("amount", "invoice has nothing to pay")
		}
	}

	cat, err := s.categories.EnsureHidden(ctx, ownerID, category.InvoicePaymentName, category.TypeTransfer)
	if err != nil {
		return nil, fmt.Errorf("resolve invoice category: %w", err)
	}

	payDate := calendar.Today(s.now(), s.loc)
	if params.PaymentDate != nil {
		payDate = *params.PaymentDate
	}
	title := params.Description
	if title == "" {
		title = DefaultPaymentTitle
	}

	t, err := s.ledger.Create(ctx, ownerID, transaction.CreateParams{
		Title:             title,
		Amount:            amount,
		Type:              transaction.TypeTransfer,
		Status:            transaction.StatusPaid,
		Date:              payDate,
		PaymentDate:       &payDate,
		AccountID:         params.SourceAccountID,
		CategoryID:        cat.ID,
		Description:       title + " | " + key,
		ReconciliationKey: &key,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice paid",
		zap.String("owner_id", ownerID),
		zap.String("credit_card_id", card.ID),
		zap.String("reconciliation_key", key),
		zap.String("transaction_id", t.ID),
	)
	return t, nil
}

func (s *Service) isPaid(ctx context.Context, ownerID, key string) (bool, error) {
	existing, err := s.transactions.FindByReconciliationKey(ctx, ownerID, key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return true, nil
	}

	transfers, err := s.transactions.List(ctx, ownerID, transaction.Filter{Type: transaction.TypeTransfer})
	if err != nil {
		return false, err
	}
	return settled(transfers, key), nil
}

func (s *Service) cycleAmount(ctx context.Context, ownerID string, card *account.CreditCard, cycle Cycle) (decimal.Decimal, error) {
	txs, err := s.transactions.List(ctx, ownerID, transaction.Filter{CreditCardID: card.ID})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, t := range txs {
		if CycleOf(t.Date, card.ClosingDay) != cycle {
			continue
		}
		switch t.Type {
		case transaction.TypeExpense:
			total = total.Add(t.Amount)
		case transaction.TypeIncome:
			total = total.Sub(t.Amount)
		}
	}
	return total, nil
}
