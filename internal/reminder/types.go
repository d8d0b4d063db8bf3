package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kithbot/kith/internal/channel"
	"github.com/kithbot/kith/internal/contacts"
	"github.com/kithbot/kith/internal/llm"
)

// ErrInvalidTime is returned for trigger times that are not HH:MM.
var ErrInvalidTime = errors.New("invalid trigger time")

// BirthdaySource lists contacts with birthdays inside a window.
type BirthdaySource interface {
	UpcomingBirthdays(ctx context.Context, daysAhead int) ([]contacts.Upcoming, error)
}

// TextService generates reminder texts.
type TextService interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Notifier delivers a reminder to its owner.
type Notifier interface {
	Send(ctx context.Context, msg channel.OutboundMessage) error
}

// TriggerTime is the daily wall-clock time the job fires at.
type TriggerTime struct {
	Hour   int
	Minute int
}

func (t TriggerTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// cronSpec renders the time as a standard five-field cron expression.
func (t TriggerTime) cronSpec() string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

// ParseTriggerTime parses "HH:MM" with hours 0-23 and minutes 0-59.
func ParseTriggerTime(value string) (TriggerTime, error) {
	hourPart, minutePart, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return TriggerTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	if !isDigits(hourPart, 1, 2) || !isDigits(minutePart, 2, 2) {
		return TriggerTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour > 23 {
		return TriggerTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil || minute > 59 {
		return TriggerTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return TriggerTime{Hour: hour, Minute: minute}, nil
}

func isDigits(value string, minLen, maxLen int) bool {
	if len(value) < minLen || len(value) > maxLen {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Report summarises one job run.
type Report struct {
	Skipped bool
	Matched int
	Sent    int
	Failed  int
}
