package tradingday

import (
	"math"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReferenceDate(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		resetHour int
		want      time.Time
	}{
		{"after reset", time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC), 15, date(2024, 3, 10)},
		{"exactly at reset", time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC), 15, date(2024, 3, 10)},
		{"before reset", time.Date(2024, 3, 10, 14, 59, 59, 0, time.UTC), 15, date(2024, 3, 9)},
		{"just after midnight", time.Date(2024, 3, 10, 0, 0, 1, 0, time.UTC), 15, date(2024, 3, 9)},
		{"month boundary", time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), 15, date(2024, 2, 29)},
		{"year boundary", time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC), 15, date(2024, 12, 31)},
		{"midnight reset", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 0, date(2024, 3, 10)},
		{"non-UTC input", time.Date(2024, 3, 10, 10, 0, 0, 0, time.FixedZone("UTC+8", 8*3600)), 15, date(2024, 3, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReferenceDate(tt.now, tt.resetHour)
			if !got.Equal(tt.want) {
				t.Errorf("ReferenceDate(%v, %d) = %v, want %v", tt.now, tt.resetHour, got, tt.want)
			}
		})
	}
}

func TestNeedsRollover(t *testing.T) {
	tests := []struct {
		name    string
		lastRef time.Time
		now     time.Time
		want    bool
	}{
		{
			name:    "same trading day",
			lastRef: date(2024, 3, 10),
			now:     time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC),
			want:    false,
		},
		{
			name:    "new calendar date before reset hour",
			lastRef: date(2024, 3, 10),
			now:     time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
			want:    false,
		},
		{
			name:    "new calendar date at reset hour",
			lastRef: date(2024, 3, 10),
			now:     time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC),
			want:    true,
		},
		{
			name:    "several days idle",
			lastRef: date(2024, 3, 6),
			now:     time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
			want:    true,
		},
		{
			name:    "last tick from the future",
			lastRef: date(2024, 3, 12),
			now:     time.Date(2024, 3, 11, 16, 0, 0, 0, time.UTC),
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsRollover(tt.lastRef, tt.now, 15); got != tt.want {
				t.Errorf("NeedsRollover() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want float64
	}{
		{"day start", time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC), 0},
		{"half way", time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC), 0.5},
		{"quarter", time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC), 0.25},
		{"just before reset", time.Date(2024, 3, 11, 14, 59, 59, 0, time.UTC), 1 - 1.0/86400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Progress(tt.now, 15)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Progress(%v) = %v, want %v", tt.now, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Progress(%v) = %v out of [0,1]", tt.now, got)
			}
		})
	}
}

func TestDayProgress(t *testing.T) {
	now := time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		ref       time.Time
		resetHour int
		want      float64
	}{
		{"current day", date(2024, 3, 10), 15, 0.5},
		{"closed day", date(2024, 3, 9), 15, 1},
		{"future day", date(2024, 3, 11), 15, 0},
		{"midnight reset", date(2024, 3, 11), 0, 0.125},
		{"midnight reset closed day", date(2024, 3, 10), 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DayProgress(tt.ref, now, tt.resetHour)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DayProgress(%v) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestStart(t *testing.T) {
	got := Start(date(2024, 3, 10), 15)
	want := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Start() = %v, want %v", got, want)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Error("SameDay() = false, want true")
	}
	if SameDay(a, a.AddDate(0, 0, 1)) {
		t.Error("SameDay() = true for consecutive days")
	}
}
