package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"fintrack/internal/domain/transaction"
)

const transactionColumns = `id, owner_id, title, amount, type, status, date, payment_date,
	account_id, destination_account_id, category_id, credit_card_id, recurrence_id,
	installment_group_id, installment_number, total_installments, is_auto_pay,
	description, reconciliation_key, created_at, updated_at`

// TransactionRepository implements transaction.Repository for PostgreSQL.
// Bound to an open transaction, its point reads take row locks.
type TransactionRepository struct {
	db   Querier
	inTx bool
}

func NewTransactionRepository(db Querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) forUpdate() string {
	if r.inTx {
		return " FOR UPDATE"
	}
	return ""
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.OwnerID, t.Title, t.Amount, string(t.Type), string(t.Status), dateArg(t.Date), nullDate(t.PaymentDate),
		t.AccountID, nullString(t.DestinationAccountID), t.CategoryID, nullString(t.CreditCardID), nullString(t.RecurrenceID),
		nullString(t.InstallmentGroupID), t.InstallmentNumber, t.TotalInstallments, t.IsAutoPay,
		t.Description, nullString(t.ReconciliationKey), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if domainErr := translateTransactionError(err); domainErr != nil {
			return domainErr
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1` + r.forUpdate()

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET title = $2, amount = $3, type = $4, status = $5, date = $6, payment_date = $7,
		    account_id = $8, destination_account_id = $9, category_id = $10, credit_card_id = $11,
		    is_auto_pay = $12, description = $13, updated_at = $14
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		t.ID, t.Title, t.Amount, string(t.Type), string(t.Status), dateArg(t.Date), nullDate(t.PaymentDate),
		t.AccountID, nullString(t.DestinationAccountID), t.CategoryID, nullString(t.CreditCardID),
		t.IsAutoPay, t.Description, t.UpdatedAt,
	)
	if err != nil {
		if domainErr := translateTransactionError(err); domainErr != nil {
			return domainErr
		}
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return requireAffected(result, transaction.ErrTransactionNotFound)
}

func (r *TransactionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireAffected(result, transaction.ErrTransactionNotFound)
}

// List returns the owner's transactions newest first
func (r *TransactionRepository) List(ctx context.Context, ownerID string, filter transaction.Filter) ([]*transaction.Transaction, error) {
	conditions := []string{"owner_id = $1"}
	args := []any{ownerID}
	argIndex := 2

	if filter.AccountID != "" {
		conditions = append(conditions, fmt.Sprintf("(account_id = $%d OR destination_account_id = $%d)", argIndex, argIndex))
		args = append(args, filter.AccountID)
		argIndex++
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIndex))
		args = append(args, filter.CategoryID)
		argIndex++
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIndex))
		args = append(args, string(filter.Type))
		argIndex++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(filter.Status))
		argIndex++
	}
	if filter.CreditCardID != "" {
		conditions = append(conditions, fmt.Sprintf("credit_card_id = $%d", argIndex))
		args = append(args, filter.CreditCardID)
		argIndex++
	}
	if filter.CardOnly {
		conditions = append(conditions, "credit_card_id IS NOT NULL")
	}
	if filter.RecurrenceID != "" {
		conditions = append(conditions, fmt.Sprintf("recurrence_id = $%d", argIndex))
		args = append(args, filter.RecurrenceID)
		argIndex++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argIndex))
		args = append(args, dateArg(*filter.From))
		argIndex++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argIndex))
		args = append(args, dateArg(*filter.To))
		argIndex++
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY date DESC, created_at DESC, id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	return r.query(ctx, "list transactions", query, args...)
}

func (r *TransactionRepository) ListByInstallmentGroup(ctx context.Context, ownerID, groupID string) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE owner_id = $1 AND installment_group_id = $2
		ORDER BY installment_number, id` + r.forUpdate()

	return r.query(ctx, "list installment group", query, ownerID, groupID)
}

func (r *TransactionRepository) ListDueAutoPay(ctx context.Context, q transaction.DueAutoPayQuery) ([]*transaction.Transaction, error) {
	conditions := []string{"is_auto_pay", "status = 'pending'", "date <= $1", "id > $2"}
	args := []any{dateArg(q.OnOrBefore), q.AfterID}
	argIndex := 3

	if q.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, q.OwnerID)
		argIndex++
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY id`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
	}

	return r.query(ctx, "list due auto-pay transactions", query, args...)
}

func (r *TransactionRepository) ListOwnersWithDueAutoPay(ctx context.Context, onOrBefore civil.Date) ([]string, error) {
	query := `
		SELECT DISTINCT owner_id
		FROM transactions
		WHERE is_auto_pay AND status = 'pending' AND date <= $1
		ORDER BY owner_id
	`
	return queryStrings(ctx, r.db, "list auto-pay owners", query, dateArg(onOrBefore))
}

func (r *TransactionRepository) FindByOccurrence(ctx context.Context, recurrenceID string, date civil.Date) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE recurrence_id = $1 AND date = $2`
	return r.find(ctx, "find occurrence", query, recurrenceID, dateArg(date))
}

func (r *TransactionRepository) FindByReconciliationKey(ctx context.Context, ownerID, key string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE owner_id = $1 AND reconciliation_key = $2`
	return r.find(ctx, "find reconciliation key", query, ownerID, key)
}

func (r *TransactionRepository) find(ctx context.Context, op, query string, args ...any) (*transaction.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return t, nil
}

func (r *TransactionRepository) query(ctx context.Context, op, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	txs := make([]*transaction.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return txs, nil
}

func scanTransaction(row Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var txType, status string
	var date time.Time
	var paymentDate sql.NullTime
	var destinationID, cardID, recurrenceID, groupID, reconciliationKey sql.NullString

	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Amount, &txType, &status, &date, &paymentDate,
		&t.AccountID, &destinationID, &t.CategoryID, &cardID, &recurrenceID,
		&groupID, &t.InstallmentNumber, &t.TotalInstallments, &t.IsAutoPay,
		&t.Description, &reconciliationKey, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Type = transaction.Type(txType)
	t.Status = transaction.Status(status)
	t.Date = civil.DateOf(date.UTC())
	t.PaymentDate = datePtr(paymentDate)
	t.DestinationAccountID = stringPtr(destinationID)
	t.CreditCardID = stringPtr(cardID)
	t.RecurrenceID = stringPtr(recurrenceID)
	t.InstallmentGroupID = stringPtr(groupID)
	t.ReconciliationKey = stringPtr(reconciliationKey)
	return &t, nil
}

func queryStrings(ctx context.Context, db Querier, op, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", op, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return values, nil
}

func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
