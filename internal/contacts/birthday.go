package contacts

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// BirthdayLayout is the storage layout of birthdays.
const BirthdayLayout = "2006-01-02"

// placeholderYear replaces a missing year; it is a leap year so Feb 29 stays valid.
const placeholderYear = 2000

// NormalizeBirthday validates raw and returns it as YYYY-MM-DD. It accepts
// YYYY-MM-DD and MM-DD; a zero year becomes a placeholder. Empty input yields "".
func NormalizeBirthday(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	var (
		parsed time.Time
		err    error
	)
	for _, layout := range []string{BirthdayLayout, "01-02"} {
		parsed, err = time.Parse(layout, raw)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidBirthday, raw)
	}
	if parsed.Year() < 1 {
		parsed = time.Date(placeholderYear, parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	}
	return parsed.Format(BirthdayLayout), nil
}

// ParseBirthday parses a stored YYYY-MM-DD birthday.
func ParseBirthday(value string) (time.Time, error) {
	parsed, err := time.Parse(BirthdayLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidBirthday, value)
	}
	return parsed, nil
}

// FormatBirthday renders a stored birthday as "15 March". ok is false for
// empty or malformed values.
func FormatBirthday(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	parsed, err := ParseBirthday(value)
	if err != nil {
		return "", false
	}
	return parsed.Format("2 January"), true
}

// DaysUntil returns the number of whole days from today's calendar date to the
// next occurrence of birthday's month and day. Today counts as 0. A Feb 29
// birthday falls on Feb 28 in non-leap years.
func DaysUntil(birthday, today time.Time) int {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	next := occurrence(birthday, start.Year())
	if next.Before(start) {
		next = occurrence(birthday, start.Year()+1)
	}
	return int(next.Sub(start).Hours() / 24)
}

func occurrence(birthday time.Time, year int) time.Time {
	day := birthday.Day()
	if birthday.Month() == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, birthday.Month(), day, 0, 0, 0, 0, time.UTC)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// collectUpcoming keeps contacts whose next birthday is within [0, daysAhead]
// days of today. Unparseable birthdays are logged and skipped.
func collectUpcoming(log *slog.Logger, items []Contact, today time.Time, daysAhead int) []Upcoming {
	upcoming := make([]Upcoming, 0)
	for _, item := range items {
		if !item.HasBirthday() {
			continue
		}
		birthday, err := ParseBirthday(item.Birthday)
		if err != nil {
			log.Warn("skip malformed birthday",
				slog.Int64("contact_id", item.ID),
				slog.String("birthday", item.Birthday),
				slog.Any("error", err),
			)
			continue
		}
		days := DaysUntil(birthday, today)
		if days < 0 || days > daysAhead {
			continue
		}
		upcoming = append(upcoming, Upcoming{Contact: item, DaysUntil: days})
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		if upcoming[i].DaysUntil != upcoming[j].DaysUntil {
			return upcoming[i].DaysUntil < upcoming[j].DaysUntil
		}
		return nameKey(upcoming[i].Contact.Name) < nameKey(upcoming[j].Contact.Name)
	})
	return upcoming
}
