package daterange

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNew_TruncatesToDay(t *testing.T) {
	in := time.Date(2024, 6, 1, 15, 30, 0, 0, time.FixedZone("X", 3*3600))
	out := time.Date(2024, 6, 5, 11, 0, 0, 0, time.UTC)
	dr, err := New(in, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dr.CheckIn.Equal(date(2024, 6, 1)) {
		t.Fatalf("want checkin 2024-06-01, got %s", dr.CheckIn)
	}
	if !dr.CheckOut.Equal(date(2024, 6, 5)) {
		t.Fatalf("want checkout 2024-06-05, got %s", dr.CheckOut)
	}
}

func TestNew_RejectsEmptyAndInverted(t *testing.T) {
	tests := []struct {
		name     string
		in, out  time.Time
		expected error
	}{
		{"same day", date(2024, 6, 1), date(2024, 6, 1), ErrInvalidRange},
		{"inverted", date(2024, 6, 5), date(2024, 6, 1), ErrInvalidRange},
		{"zero checkin", time.Time{}, date(2024, 6, 1), ErrInvalidRange},
		{"same day different hours", date(2024, 6, 1).Add(time.Hour), date(2024, 6, 1).Add(20 * time.Hour), ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.in, tt.out)
			if !errors.Is(err, tt.expected) {
				t.Fatalf("want %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestDates_EnumeratesNightsOnly(t *testing.T) {
	dr, _ := New(date(2024, 6, 1), date(2024, 6, 5))
	dates := dr.Dates()
	if len(dates) != 4 {
		t.Fatalf("want 4 nights, got %d", len(dates))
	}
	if !dates[0].Equal(date(2024, 6, 1)) || !dates[3].Equal(date(2024, 6, 4)) {
		t.Fatalf("unexpected nights: %v", dates)
	}
	if !dr.LastNight().Equal(date(2024, 6, 4)) {
		t.Fatalf("want last night 2024-06-04, got %s", dr.LastNight())
	}
	if dr.Nights() != 4 {
		t.Fatalf("want 4, got %d", dr.Nights())
	}
}

func TestDates_CrossesMonthBoundary(t *testing.T) {
	dr, _ := New(date(2024, 2, 27), date(2024, 3, 2))
	dates := dr.Dates()
	if len(dates) != 4 {
		t.Fatalf("want 4 nights across leap day, got %d", len(dates))
	}
	if !dates[2].Equal(date(2024, 2, 29)) {
		t.Fatalf("want leap day, got %s", dates[2])
	}
}

func TestOverlaps_CheckoutDayIsFree(t *testing.T) {
	a, _ := New(date(2024, 6, 1), date(2024, 6, 5))
	b, _ := New(date(2024, 6, 5), date(2024, 6, 8))
	c, _ := New(date(2024, 6, 3), date(2024, 6, 6))
	if a.Overlaps(b) {
		t.Fatal("adjacent ranges must not overlap")
	}
	if !a.Adjacent(b) {
		t.Fatal("want adjacent")
	}
	if !a.Overlaps(c) || !c.Overlaps(b) {
		t.Fatal("want overlap")
	}
}

func TestContainsDate(t *testing.T) {
	dr, _ := New(date(2024, 6, 1), date(2024, 6, 5))
	if !dr.ContainsDate(date(2024, 6, 1)) {
		t.Fatal("checkin night is occupied")
	}
	if dr.ContainsDate(date(2024, 6, 5)) {
		t.Fatal("checkout night is free")
	}
	if !dr.EndsAfter(date(2024, 6, 4)) || dr.EndsAfter(date(2024, 6, 5)) {
		t.Fatal("EndsAfter boundary wrong")
	}
	if Span(date(2024, 6, 1), date(2024, 6, 5)) != 4 {
		t.Fatal("span wrong")
	}
}
