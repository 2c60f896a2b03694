package invoice

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"fintrack/internal/domain/account"
)

func TestCycleOf(t *testing.T) {
	tests := []struct {
		name       string
		date       civil.Date
		closingDay int
		want       Cycle
	}{
		{"before closing", civil.Date{Year: 2024, Month: time.March, Day: 10}, 25, Cycle{time.March, 2024}},
		{"on closing day", civil.Date{Year: 2024, Month: time.February, Day: 25}, 25, Cycle{time.March, 2024}},
		{"after closing", civil.Date{Year: 2024, Month: time.February, Day: 26}, 25, Cycle{time.March, 2024}},
		{"december rolls over", civil.Date{Year: 2024, Month: time.December, Day: 28}, 20, Cycle{time.January, 2025}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CycleOf(tt.date, tt.closingDay); got != tt.want {
				t.Errorf("CycleOf() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDueAndClosingDates(t *testing.T) {
	tests := []struct {
		name        string
		card        account.CreditCard
		cycle       Cycle
		wantDue     civil.Date
		wantClosing civil.Date
	}{
		{
			name:        "closing after due day falls in previous month",
			card:        account.CreditCard{ClosingDay: 25, DueDay: 5},
			cycle:       Cycle{time.March, 2024},
			wantDue:     civil.Date{Year: 2024, Month: time.March, Day: 5},
			wantClosing: civil.Date{Year: 2024, Month: time.February, Day: 25},
		},
		{
			name:        "closing before due day stays in month",
			card:        account.CreditCard{ClosingDay: 3, DueDay: 10},
			cycle:       Cycle{time.March, 2024},
			wantDue:     civil.Date{Year: 2024, Month: time.March, Day: 10},
			wantClosing: civil.Date{Year: 2024, Month: time.March, Day: 3},
		},
		{
			name:        "january closing falls in december",
			card:        account.CreditCard{ClosingDay: 31, DueDay: 8},
			cycle:       Cycle{time.January, 2025},
			wantDue:     civil.Date{Year: 2025, Month: time.January, Day: 8},
			wantClosing: civil.Date{Year: 2024, Month: time.December, Day: 31},
		},
		{
			name:        "clamped to february",
			card:        account.CreditCard{ClosingDay: 20, DueDay: 31},
			cycle:       Cycle{time.February, 2023},
			wantDue:     civil.Date{Year: 2023, Month: time.February, Day: 28},
			wantClosing: civil.Date{Year: 2023, Month: time.February, Day: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DueDate(&tt.card, tt.cycle); got != tt.wantDue {
				t.Errorf("DueDate() = %s, want %s", got, tt.wantDue)
			}
			if got := ClosingDate(&tt.card, tt.cycle); got != tt.wantClosing {
				t.Errorf("ClosingDate() = %s, want %s", got, tt.wantClosing)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	inv := &Invoice{
		DueDate:     civil.Date{Year: 2024, Month: time.March, Day: 5},
		ClosingDate: civil.Date{Year: 2024, Month: time.February, Day: 25},
	}

	tests := []struct {
		name  string
		today civil.Date
		paid  bool
		want  Status
	}{
		{"open", civil.Date{Year: 2024, Month: time.February, Day: 20}, false, StatusOpen},
		{"closed on closing date", civil.Date{Year: 2024, Month: time.February, Day: 25}, false, StatusClosed},
		{"closed on due date", civil.Date{Year: 2024, Month: time.March, Day: 5}, false, StatusClosed},
		{"overdue", civil.Date{Year: 2024, Month: time.March, Day: 6}, false, StatusOverdue},
		{"paid wins", civil.Date{Year: 2024, Month: time.March, Day: 6}, true, StatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status(inv, tt.today, tt.paid); got != tt.want {
				t.Errorf("status() = %s, want %s", got, tt.want)
			}
		})
	}
}
