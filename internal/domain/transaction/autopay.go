package transaction

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultPageSize is the number of rows fetched per sweep page.
const DefaultPageSize = 200

var (
	autoPayMeter      = otel.Meter("fintrack/autopay")
	autoPaySettled, _ = autoPayMeter.Int64Counter("autopay.settled.total",
		metric.WithDescription("Pending auto-pay transactions promoted to paid"),
	)
	autoPayFailed, _ = autoPayMeter.Int64Counter("autopay.failed.total",
		metric.WithDescription("Auto-pay transactions that could not be settled"),
	)
)

// SettleResult summarizes one settlement pass.
type SettleResult struct {
	Scanned int      `json:"scanned"`
	Settled int      `json:"settled"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// AutoPaySettler promotes due, pending auto-pay transactions to paid.
type AutoPaySettler struct {
	repo     Repository
	ledger   *Ledger
	logger   *zap.Logger
	pageSize int
}

func NewAutoPaySettler(repo Repository, ledger *Ledger, pageSize int, logger *zap.Logger) *AutoPaySettler {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &AutoPaySettler{repo: repo, ledger: ledger, logger: logger, pageSize: pageSize}
}

// Settle processes every owner's due rows.
func (s *AutoPaySettler) Settle(ctx context.Context, today civil.Date) (*SettleResult, error) {
	return s.settle(ctx, "", today)
}

// SettleOwner processes one owner's due rows.
func (s *AutoPaySettler) SettleOwner(ctx context.Context, ownerID string, today civil.Date) (*SettleResult, error) {
	return s.settle(ctx, ownerID, today)
}

func (s *AutoPaySettler) settle(ctx context.Context, ownerID string, today civil.Date) (*SettleResult, error) {
	result := &SettleResult{Errors: []string{}}
	paid := StatusPaid
	pending := StatusPending

	query := DueAutoPayQuery{OwnerID: ownerID, OnOrBefore: today, Limit: s.pageSize}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := s.repo.ListDueAutoPay(ctx, query)
		if err != nil {
			return result, err
		}
		if len(page) == 0 {
			break
		}

		for _, t := range page {
			result.Scanned++
			payDate := today
			_, err := s.ledger.Update(ctx, t.OwnerID, t.ID, UpdateParams{
				Status:      &paid,
				PaymentDate: &payDate,
				IfStatus:    &pending,
			})
			switch {
			case err == nil:
				result.Settled++
				autoPaySettled.Add(ctx, 1)
			case errors.Is(err, ErrStatusChanged), errors.Is(err, ErrTransactionNotFound):
				result.Skipped++
			default:
				result.Failed++
				result.Errors = append(result.Errors, t.ID+": "+err.Error())
				autoPayFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "ledger")))
				s.logger.Warn("auto-pay settlement failed",
					zap.String("transaction_id", t.ID),
					zap.String("owner_id", t.OwnerID),
					zap.Error(err),
				)
			}
		}

		if len(page) < query.Limit {
			break
		}
		query.AfterID = page[len(page)-1].ID
	}

	s.logger.Info("auto-pay settlement finished",
		zap.String("owner_id", ownerID),
		zap.String("date", today.String()),
		zap.Int("scanned", result.Scanned),
		zap.Int("settled", result.Settled),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
