package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/lib/pq"

	"fintrack/internal/domain/recurrence"
	"fintrack/internal/domain/transaction"
	"fintrack/internal/shared/apperr"
)

const ruleColumns = `id, owner_id, name, amount, type, category_id, account_id,
	destination_account_id, credit_card_id, periodicity, due_day, due_month, auto_pay,
	description, active, cancellation_date, successor_id, skipped_dates, last_processed_at,
	created_at, updated_at`

const (
	activeRule = `(successor_id IS NULL AND cancellation_date IS NULL AND active)`
)

// RecurrenceRepository implements recurrence.Repository for PostgreSQL
type RecurrenceRepository struct {
	db *DB
}

func NewRecurrenceRepository(db *DB) *RecurrenceRepository {
	return &RecurrenceRepository{db: db}
}

func (r *RecurrenceRepository) Create(ctx context.Context, rule *recurrence.Rule) error {
	return insertRule(ctx, r.db, rule)
}

func (r *RecurrenceRepository) GetByID(ctx context.Context, id string) (*recurrence.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurrence_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, recurrence.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recurrence rule: %w", err)
	}
	return rule, nil
}

func (r *RecurrenceRepository) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*recurrence.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurrence_rules WHERE owner_id = $1`
	if activeOnly {
		query += ` AND ` + activeRule
	}
	query += ` ORDER BY created_at, id`

	return r.query(ctx, "list recurrence rules", query, ownerID)
}

// ListActive pages schedulable rules by id
func (r *RecurrenceRepository) ListActive(ctx context.Context, q recurrence.ActiveQuery) ([]*recurrence.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurrence_rules WHERE id > $1 AND ` + activeRule
	args := []any{q.AfterID}
	argIndex := 2

	if q.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIndex)
		args = append(args, q.OwnerID)
		argIndex++
	}
	query += ` ORDER BY id`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
	}

	return r.query(ctx, "list active recurrence rules", query, args...)
}

func (r *RecurrenceRepository) ListOwnersWithActiveRules(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT owner_id FROM recurrence_rules WHERE ` + activeRule + ` ORDER BY owner_id`
	return queryStrings(ctx, r.db, "list recurrence owners", query)
}

func (r *RecurrenceRepository) Update(ctx context.Context, rule *recurrence.Rule) error {
	return updateRule(ctx, r.db, rule)
}

func (r *RecurrenceRepository) SetLastProcessed(ctx context.Context, id string, date civil.Date) error {
	query := `UPDATE recurrence_rules SET last_processed_at = $2, updated_at = now() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, dateArg(date))
	if err != nil {
		return fmt.Errorf("failed to set last processed date: %w", err)
	}
	return requireAffected(result, recurrence.ErrRuleNotFound)
}

// Supersede inserts the successor before updating old, which references it
func (r *RecurrenceRepository) Supersede(ctx context.Context, old, successor *recurrence.Rule) error {
	return r.db.withTx(ctx, func(q Querier) error {
		if err := insertRule(ctx, q, successor); err != nil {
			return err
		}
		return updateRule(ctx, q, old)
	})
}

func insertRule(ctx context.Context, db Querier, rule *recurrence.Rule) error {
	query := `
		INSERT INTO recurrence_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	p := recurrence.Project(rule.Lineage)
	_, err := db.ExecContext(ctx, query,
		rule.ID, rule.OwnerID, rule.Name, rule.Amount, string(rule.Type), rule.CategoryID, rule.AccountID,
		nullString(rule.DestinationAccountID), nullString(rule.CreditCardID), string(rule.Periodicity),
		rule.DueDay, nullInt(rule.DueMonth), rule.AutoPay, rule.Description,
		p.Active, nullDate(p.CancellationDate), nullString(p.SuccessorID), skippedArg(rule.SkippedDates),
		nullDate(rule.LastProcessedAt), rule.CreatedAt, rule.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("recurrence rule %s already exists: %w", rule.ID, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create recurrence rule: %w", err)
	}
	return nil
}

func updateRule(ctx context.Context, db Querier, rule *recurrence.Rule) error {
	query := `
		UPDATE recurrence_rules
		SET name = $2, amount = $3, type = $4, category_id = $5, account_id = $6,
		    destination_account_id = $7, credit_card_id = $8, periodicity = $9, due_day = $10,
		    due_month = $11, auto_pay = $12, description = $13, active = $14,
		    cancellation_date = $15, successor_id = $16, skipped_dates = $17,
		    last_processed_at = $18, updated_at = $19
		WHERE id = $1
	`

	p := recurrence.Project(rule.Lineage)
	result, err := db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.Amount, string(rule.Type), rule.CategoryID, rule.AccountID,
		nullString(rule.DestinationAccountID), nullString(rule.CreditCardID), string(rule.Periodicity),
		rule.DueDay, nullInt(rule.DueMonth), rule.AutoPay, rule.Description,
		p.Active, nullDate(p.CancellationDate), nullString(p.SuccessorID), skippedArg(rule.SkippedDates),
		nullDate(rule.LastProcessedAt), rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update recurrence rule: %w", err)
	}
	return requireAffected(result, recurrence.ErrRuleNotFound)
}

func (r *RecurrenceRepository) query(ctx context.Context, op, query string, args ...any) ([]*recurrence.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	rules := make([]*recurrence.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurrence rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return rules, nil
}

// scanRule fails only on driver errors. Values that cannot be decoded are
// reported through LoadError so the rule can still be listed.
func scanRule(row Row) (*recurrence.Rule, error) {
	var rule recurrence.Rule
	var txType, periodicity string
	var destinationID, cardID, successorID sql.NullString
	var dueMonth sql.NullInt64
	var cancellation, lastProcessed sql.NullTime
	var skipped pq.StringArray
	var p recurrence.Projection

	err := row.Scan(
		&rule.ID, &rule.OwnerID, &rule.Name, &rule.Amount, &txType, &rule.CategoryID, &rule.AccountID,
		&destinationID, &cardID, &periodicity, &rule.DueDay, &dueMonth, &rule.AutoPay,
		&rule.Description, &p.Active, &cancellation, &successorID, &skipped, &lastProcessed,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Type = transaction.Type(txType)
	rule.Periodicity = recurrence.Periodicity(periodicity)
	rule.DestinationAccountID = stringPtr(destinationID)
	rule.CreditCardID = stringPtr(cardID)
	rule.DueMonth = intPtr(dueMonth)
	rule.LastProcessedAt = datePtr(lastProcessed)
	p.CancellationDate = datePtr(cancellation)
	p.SuccessorID = stringPtr(successorID)
	rule.Lineage = p.Lineage()

	rule.SkippedDates = make([]civil.Date, 0, len(skipped))
	for _, s := range skipped {
		d, err := civil.ParseDate(s)
		if err != nil {
			rule.LoadError = fmt.Errorf("invalid skipped date %q: %w", s, err)
			break
		}
		rule.SkippedDates = append(rule.SkippedDates, d)
	}
	return &rule, nil
}

func skippedArg(dates []civil.Date) any {
	values := make([]string, len(dates))
	for i, d := range dates {
		values[i] = d.String()
	}
	return pq.Array(values)
}
