package calendar

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestClamped(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		day   int
		want  civil.Date
	}{
		{"regular day", 2024, time.March, 15, civil.Date{Year: 2024, Month: time.March, Day: 15}},
		{"thirty day month", 2024, time.April, 31, civil.Date{Year: 2024, Month: time.April, Day: 30}},
		{"leap february", 2024, time.February, 31, civil.Date{Year: 2024, Month: time.February, Day: 29}},
		{"common february", 2023, time.February, 30, civil.Date{Year: 2023, Month: time.February, Day: 28}},
		{"month overflow", 2024, 13, 5, civil.Date{Year: 2025, Month: time.January, Day: 5}},
		{"month underflow", 2024, 0, 31, civil.Date{Year: 2023, Month: time.December, Day: 31}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamped(tt.year, tt.month, tt.day))
		})
	}
}

func TestAddMonths(t *testing.T) {
	jan31 := civil.Date{Year: 2024, Month: time.January, Day: 31}

	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 29}, AddMonths(jan31, 1))
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 31}, AddMonths(jan31, 2))
	assert.Equal(t, civil.Date{Year: 2023, Month: time.December, Day: 31}, AddMonths(jan31, -1))
	assert.Equal(t, civil.Date{Year: 2025, Month: time.January, Day: 31}, AddMonths(jan31, 12))
}

func TestToday(t *testing.T) {
	now := time.Date(2024, time.March, 1, 2, 0, 0, 0, time.UTC)
	saoPaulo := time.FixedZone("BRT", -3*60*60)

	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 1}, Today(now, nil))
	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 29}, Today(now, saoPaulo))
}
