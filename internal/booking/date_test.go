package booking

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"2026-02-05", Date{2026, time.February, 5}, false},
		{"2026-12-31", Date{2026, time.December, 31}, false},
		{"2024-02-29", Date{2024, time.February, 29}, false}, // leap day
		{"2026-02-30", Date{}, true},                         // no such day
		{"2026-13-01", Date{}, true},
		{"2026-00-10", Date{}, true},
		{"2026-2-05", Date{}, true}, // not zero padded
		{"02/05/2026", Date{}, true},
		{"", Date{}, true},
		{"2026-02-05T00:00:00Z", Date{}, true},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDate(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDate(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"9:00", 0, true},
		{"0900", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDateOrdering(t *testing.T) {
	a := Date{2026, time.January, 31}
	b := Date{2026, time.February, 1}
	if !a.Before(b) || b.Before(a) {
		t.Fatalf("expected %v < %v", a, b)
	}
	if !b.After(a) {
		t.Fatalf("expected %v > %v", b, a)
	}
	if a.Before(a) {
		t.Fatalf("a date must not be before itself")
	}
}

func TestSameISOWeekAcrossMonthBoundary(t *testing.T) {
	// The ISO week of Tue 2026-01-27 runs Mon Jan 26 to Sun Feb 1.
	jan27 := Date{2026, time.January, 27}
	feb1 := Date{2026, time.February, 1}
	feb2 := Date{2026, time.February, 2}

	if !SameISOWeek(jan27, feb1) {
		t.Errorf("Jan 27 and Feb 1 2026 should share an ISO week")
	}
	if SameISOWeek(jan27, feb2) {
		t.Errorf("Jan 27 and Feb 2 2026 are in different ISO weeks")
	}
}

func TestSameISOWeekAcrossYearBoundary(t *testing.T) {
	// Week 1 of 2026 starts Mon 2025-12-29.
	dec29 := Date{2025, time.December, 29}
	jan4 := Date{2026, time.January, 4}
	jan5 := Date{2026, time.January, 5}

	if !SameISOWeek(dec29, jan4) {
		t.Errorf("Dec 29 2025 and Jan 4 2026 should share ISO week 1 of 2026")
	}
	if SameISOWeek(dec29, jan5) {
		t.Errorf("Dec 29 2025 and Jan 5 2026 are in different ISO weeks")
	}
}

func TestWeekBounds(t *testing.T) {
	// Thu 2026-02-05 sits in the week Mon Feb 2 .. Sun Feb 8.
	monday, sunday := Date{2026, time.February, 5}.WeekBounds()
	if monday != (Date{2026, time.February, 2}) {
		t.Errorf("monday = %v, want 2026-02-02", monday)
	}
	if sunday != (Date{2026, time.February, 8}) {
		t.Errorf("sunday = %v, want 2026-02-08", sunday)
	}

	// A Sunday belongs to the week that started six days earlier.
	monday, sunday = Date{2026, time.February, 8}.WeekBounds()
	if monday != (Date{2026, time.February, 2}) || sunday != (Date{2026, time.February, 8}) {
		t.Errorf("week bounds of a Sunday = %v..%v, want 2026-02-02..2026-02-08", monday, sunday)
	}
}

func TestIntervalOverlaps(t *testing.T) {
	base := Interval{Start: 600, End: 630}
	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", Interval{600, 630}, true},
		{"contained", Interval{610, 620}, true},
		{"overlap left", Interval{590, 610}, true},
		{"overlap right", Interval{620, 640}, true},
		{"touching before", Interval{570, 600}, false},
		{"touching after", Interval{630, 660}, false},
		{"disjoint", Interval{700, 730}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps(%v) = %v, want %v", tt.other, got, tt.want)
			}
		})
	}
}

func TestIntervalContains(t *testing.T) {
	base := Interval{Start: 600, End: 660}
	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", Interval{600, 660}, true},
		{"inside", Interval{610, 650}, true},
		{"flush left", Interval{600, 630}, true},
		{"flush right", Interval{630, 660}, true},
		{"spills left", Interval{590, 630}, false},
		{"spills right", Interval{630, 670}, false},
		{"disjoint", Interval{700, 730}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Contains(tt.other); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.other, got, tt.want)
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	feb4 := Date{2026, time.February, 4}
	if got := feb4.DaysUntil(Date{2026, time.February, 5}); got != 1 {
		t.Errorf("DaysUntil next day = %d, want 1", got)
	}
	if got := feb4.DaysUntil(feb4); got != 0 {
		t.Errorf("DaysUntil self = %d, want 0", got)
	}
	if got := (Date{2026, time.January, 1}).DaysUntil(Date{2025, time.December, 31}); got != -1 {
		t.Errorf("DaysUntil across year = %d, want -1", got)
	}
	if got := (Date{2024, time.February, 28}).DaysUntil(Date{2024, time.March, 1}); got != 2 {
		t.Errorf("DaysUntil over leap day = %d, want 2", got)
	}
}
