package recurrence

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func d(y int, m time.Month, day int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: day}
}

func TestNextDue(t *testing.T) {
	march := 3

	tests := []struct {
		name    string
		rule    Rule
		pointer *civil.Date
		today   civil.Date
		want    civil.Date
		wantDue bool
	}{
		{"monthly without pointer on due day", Rule{Periodicity: Monthly, DueDay: 10}, nil, d(2024, time.February, 10), d(2024, time.February, 10), true},
		{"monthly without pointer before due day", Rule{Periodicity: Monthly, DueDay: 15}, nil, d(2024, time.February, 10), d(2024, time.February, 15), false},
		{"monthly anchor clamps to february", Rule{Periodicity: Monthly, DueDay: 31}, nil, d(2023, time.February, 28), d(2023, time.February, 28), true},
		{"monthly step re-forces due day", Rule{Periodicity: Monthly, DueDay: 31}, ptrDate(d(2024, time.February, 29)), d(2024, time.March, 31), d(2024, time.March, 31), true},
		{"monthly step into 30-day month", Rule{Periodicity: Monthly, DueDay: 31}, ptrDate(d(2024, time.March, 31)), d(2024, time.April, 30), d(2024, time.April, 30), true},
		{"monthly step into leap february", Rule{Periodicity: Monthly, DueDay: 31}, ptrDate(d(2024, time.January, 31)), d(2024, time.February, 1), d(2024, time.February, 29), false},
		{"monthly step across year end", Rule{Periodicity: Monthly, DueDay: 5}, ptrDate(d(2023, time.December, 5)), d(2024, time.January, 5), d(2024, time.January, 5), true},
		{"weekly step", Rule{Periodicity: Weekly, DueDay: 1}, ptrDate(d(2024, time.February, 26)), d(2024, time.March, 4), d(2024, time.March, 4), true},
		{"daily step", Rule{Periodicity: Daily, DueDay: 1}, ptrDate(d(2024, time.February, 28)), d(2024, time.February, 28), d(2024, time.February, 29), false},
		{"yearly anchor uses due month", Rule{Periodicity: Yearly, DueDay: 15, DueMonth: &march}, nil, d(2024, time.February, 10), d(2024, time.March, 15), false},
		{"yearly step", Rule{Periodicity: Yearly, DueDay: 29, DueMonth: ptrInt(2)}, ptrDate(d(2024, time.February, 29)), d(2025, time.March, 1), d(2025, time.February, 28), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			rule.LastProcessedAt = tt.pointer
			got, due := rule.NextDue(tt.today)
			if got != tt.want {
				t.Errorf("NextDue() date = %s, want %s", got, tt.want)
			}
			if due != tt.wantDue {
				t.Errorf("NextDue() due = %v, want %v", due, tt.wantDue)
			}
		})
	}
}

func TestProjectionRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		lineage Lineage
		active  bool
	}{
		{"active", Active{}, true},
		{"paused", Paused{}, false},
		{"cancelled", Cancelled{Date: d(2024, time.March, 15)}, false},
		{"superseded", Superseded{SuccessorID: "rule-2", EffectiveDate: d(2024, time.April, 1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Project(tt.lineage)
			if p.Active != tt.active {
				t.Errorf("Active = %v, want %v", p.Active, tt.active)
			}
			if got := p.Lineage(); got != tt.lineage {
				t.Errorf("Lineage() = %#v, want %#v", got, tt.lineage)
			}
		})
	}
}

func TestRule_CancellationDate(t *testing.T) {
	r := &Rule{}
	if r.CancellationDate() != nil {
		t.Error("rule without lineage has no cancellation date")
	}
	if !r.IsActive() {
		t.Error("rule without lineage is active")
	}

	r.Lineage = Superseded{SuccessorID: "next", EffectiveDate: d(2024, time.May, 1)}
	if got := r.CancellationDate(); got == nil || *got != d(2024, time.May, 1) {
		t.Errorf("CancellationDate() = %v, want 2024-05-01", got)
	}
}

func TestRule_ValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"valid", Rule{Periodicity: Monthly, DueDay: 31}, false},
		{"unknown periodicity", Rule{Periodicity: "hourly", DueDay: 1}, true},
		{"due day zero", Rule{Periodicity: Monthly, DueDay: 0}, true},
		{"due day 32", Rule{Periodicity: Monthly, DueDay: 32}, true},
		{"due month 13", Rule{Periodicity: Yearly, DueDay: 1, DueMonth: ptrInt(13)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.validateSchedule()
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSchedule() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func ptrDate(v civil.Date) *civil.Date { return &v }

func ptrInt(v int) *int { return &v }
