package contacts

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeBirthday(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "  ", want: ""},
		{in: "1990-03-15", want: "1990-03-15"},
		{in: " 1990-03-15 ", want: "1990-03-15"},
		{in: "03-15", want: "2000-03-15"},
		{in: "0000-03-15", want: "2000-03-15"},
		{in: "02-29", want: "2000-02-29"},
		{in: "1990-02-30", wantErr: true},
		{in: "15.03.1990", wantErr: true},
		{in: "tomorrow", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeBirthday(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidBirthday) {
				t.Errorf("NormalizeBirthday(%q) error = %v, want ErrInvalidBirthday", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeBirthday(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeBirthday(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatBirthday(t *testing.T) {
	if got, ok := FormatBirthday("2020-03-15"); !ok || got != "15 March" {
		t.Fatalf("FormatBirthday = %q, %v", got, ok)
	}
	if _, ok := FormatBirthday(""); ok {
		t.Fatal("empty birthday must not format")
	}
	if _, ok := FormatBirthday("garbage"); ok {
		t.Fatal("malformed birthday must not format")
	}
}

func TestDaysUntil(t *testing.T) {
	cases := []struct {
		name     string
		birthday time.Time
		today    time.Time
		want     int
	}{
		{"later this year", date(2020, time.March, 15), date(2024, time.March, 10), 5},
		{"today", date(1985, time.June, 1), date(2024, time.June, 1), 0},
		{"already passed wraps", date(1990, time.January, 5), date(2024, time.December, 30), 6},
		{"leap day in leap year", date(2000, time.February, 29), date(2024, time.February, 1), 28},
		{"leap day in common year", date(2000, time.February, 29), date(2023, time.February, 1), 27},
		{"leap day wraps to common year", date(2000, time.February, 29), date(2024, time.March, 1), 364},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DaysUntil(tc.birthday, tc.today); got != tc.want {
				t.Fatalf("DaysUntil = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDaysUntilIgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)
	if got := DaysUntil(date(1999, time.March, 11), today); got != 1 {
		t.Fatalf("DaysUntil = %d, want 1", got)
	}
}

func TestCollectUpcoming(t *testing.T) {
	today := date(2024, time.March, 10)
	items := []Contact{
		{ID: 1, Name: "Oleh", Birthday: "2020-03-15"},
		{ID: 2, Name: "anna", Birthday: "1990-03-15"},
		{ID: 3, Name: "Far", Birthday: "1990-04-19"},
		{ID: 4, Name: "Edge", Birthday: "1990-04-19"},
		{ID: 5, Name: "Broken", Birthday: "not-a-date"},
		{ID: 6, Name: "NoBirthday"},
		{ID: 7, Name: "Today", Birthday: "1970-03-10"},
	}

	got := collectUpcoming(slog.Default(), items, today, 5)
	wantIDs := []int64{7, 2, 1}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d upcoming, want %d: %+v", len(got), len(wantIDs), got)
	}
	for i, id := range wantIDs {
		if got[i].Contact.ID != id {
			t.Errorf("position %d: got contact %d, want %d", i, got[i].Contact.ID, id)
		}
	}
	if got[2].DaysUntil != 5 {
		t.Errorf("Oleh days = %d, want 5", got[2].DaysUntil)
	}

	// 2024-03-10 to 2024-04-19 is exactly 40 days; the window is inclusive.
	wide := collectUpcoming(slog.Default(), items, today, 40)
	if len(wide) != 5 {
		t.Fatalf("got %d upcoming with 40 day window, want 5", len(wide))
	}
	if wide[3].Contact.Name != "Edge" || wide[4].Contact.Name != "Far" {
		t.Errorf("same-day birthdays must sort by name, got %q then %q", wide[3].Contact.Name, wide[4].Contact.Name)
	}
}

func TestCollectUpcomingZeroWindow(t *testing.T) {
	today := date(2024, time.March, 10)
	items := []Contact{
		{ID: 1, Name: "Today", Birthday: "1970-03-10"},
		{ID: 2, Name: "Tomorrow", Birthday: "1970-03-11"},
	}
	got := collectUpcoming(slog.Default(), items, today, 0)
	if len(got) != 1 || got[0].Contact.ID != 1 {
		t.Fatalf("unexpected upcoming: %+v", got)
	}
}
