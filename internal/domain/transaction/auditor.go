package transaction

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceReport compares an account's stored balance with the balance
// recomputed from the ledger.
type BalanceReport struct {
	AccountID string          `json:"accountId"`
	Initial   decimal.Decimal `json:"initial"`
	Stored    decimal.Decimal `json:"stored"`
	Expected  decimal.Decimal `json:"expected"`
	Drift     decimal.Decimal `json:"drift"`
	Settled   int             `json:"settled"`
}

// Consistent reports whether stored and expected balances agree.
func (r *BalanceReport) Consistent() bool {
	return r.Drift.IsZero()
}

// Auditor recomputes balances as initial + sum of settled effects.
type Auditor struct {
	repo     Repository
	accounts AccountLookup
}

func NewAuditor(repo Repository, accounts AccountLookup) *Auditor {
	return &Auditor{repo: repo, accounts: accounts}
}

func (a *Auditor) Verify(ctx context.Context, ownerID, accountID string) (*BalanceReport, error) {
	acc, err := a.accounts.GetAccount(ctx, accountID, ownerID)
	if err != nil {
		return nil, err
	}

	txs, err := a.repo.List(ctx, ownerID, Filter{AccountID: accountID, Status: StatusPaid})
	if err != nil {
		return nil, err
	}

	expected := acc.InitialBalance
	settled := 0
	for _, t := range txs {
		touched := false
		for _, e := range t.Effects() {
			if e.AccountID == accountID {
				expected = expected.Add(e.Delta)
				touched = true
			}
		}
		if touched {
			settled++
		}
	}

	return &BalanceReport{
		AccountID: accountID,
		Initial:   acc.InitialBalance,
		Stored:    acc.Balance,
		Expected:  expected,
		Drift:     acc.Balance.Sub(expected),
		Settled:   settled,
	}, nil
}
