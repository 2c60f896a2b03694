package http

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"fintrack/internal/domain/recurrence"
	"fintrack/internal/domain/transaction"
	"fintrack/internal/shared/apperr"
	"fintrack/internal/shared/calendar"
)

// RecurrenceSweeper runs the generation pass over every owner.
type RecurrenceSweeper interface {
	Sweep(ctx context.Context, today civil.Date) (*recurrence.SweepResult, error)
}

// AutoPaySettler runs the settlement pass over every owner.
type AutoPaySettler interface {
	Settle(ctx context.Context, today civil.Date) (*transaction.SettleResult, error)
}

// JobsHandler exposes the batch passes to an external cron.
type JobsHandler struct {
	recurrences RecurrenceSweeper
	autoPay     AutoPaySettler
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

func NewJobsHandler(recurrences RecurrenceSweeper, autoPay AutoPaySettler, loc *time.Location, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{
		recurrences: recurrences,
		autoPay:     autoPay,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// HandleRecurrences runs generation for ?date=YYYY-MM-DD, defaulting to
// today in the business time zone.
func (h *JobsHandler) HandleRecurrences(w http.ResponseWriter, r *http.Request) {
	today, err := h.businessDate(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.recurrences.Sweep(r.Context(), today)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleAutoPay runs settlement for ?date=YYYY-MM-DD.
func (h *JobsHandler) HandleAutoPay(w http.ResponseWriter, r *http.Request) {
	today, err := h.businessDate(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.autoPay.Settle(r.Context(), today)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *JobsHandler) businessDate(r *http.Request) (civil.Date, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return calendar.Today(h.now(), h.loc), nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, apperr.Invalid("date", "date must be YYYY-MM-DD")
	}
	return d, nil
}
