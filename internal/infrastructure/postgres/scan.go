package postgres

import (
	"database/sql"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/lib/pq"

	"fintrack/internal/domain/transaction"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Unique index names from the migrations.
const (
	occurrenceIndex     = "uq_transactions_occurrence"
	reconciliationIndex = "uq_transactions_reconciliation"
)

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

// dateArg binds a civil date as a DATE literal.
func dateArg(d civil.Date) string {
	return d.String()
}

func nullDate(d *civil.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// datePtr reads a DATE column. lib/pq returns DATE values as midnight UTC.
func datePtr(nt sql.NullTime) *civil.Date {
	if !nt.Valid {
		return nil
	}
	d := civil.DateOf(nt.Time.UTC())
	return &d
}

func pqCode(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

// translateTransactionError maps constraint violations on the transactions
// table to domain errors.
func translateTransactionError(err error) error {
	pqErr, ok := pqCode(err)
	if !ok || string(pqErr.Code) != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case occurrenceIndex:
		return transaction.ErrDuplicateOccurrence
	case reconciliationIndex:
		return transaction.ErrDuplicateReconciliation
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	pqErr, ok := pqCode(err)
	return ok && string(pqErr.Code) == foreignKeyViolation
}

func isUniqueViolation(err error) bool {
	pqErr, ok := pqCode(err)
	return ok && string(pqErr.Code) == uniqueViolation
}
