// Package contacts persists users and the notes they keep about the people they know.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Store is the only component allowed to mutate users and contacts.
// Every call is a self-contained unit of work.
type Store interface {
	UpsertUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id int64) (User, error)
	FindContact(ctx context.Context, userID int64, name string) (Contact, error)
	CreateContact(ctx context.Context, userID int64, name, note, birthday string) (Contact, error)
	AppendContact(ctx context.Context, contactID int64, note, birthday string) (Contact, error)
	ListContacts(ctx context.Context, userID int64) ([]Contact, error)
	UpcomingBirthdays(ctx context.Context, daysAhead int) ([]Upcoming, error)
	Stats(ctx context.Context, userID int64) (Stats, error)
}

// entryTimeLayout stamps each context entry.
const entryTimeLayout = "02.01.2006 15:04"

// entrySeparator sits between consecutive context entries.
const entrySeparator = "\n\n"

// Option configures a store.
type Option func(*base)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.clock = now
		}
	}
}

// WithLocation sets the timezone used for entry timestamps and for "today".
func WithLocation(loc *time.Location) Option {
	return func(b *base) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// base holds what both storage backends share.
type base struct {
	logger *slog.Logger
	clock  func() time.Time
	loc    *time.Location
}

func newBase(log *slog.Logger, opts []Option) base {
	if log == nil {
		log = slog.Default()
	}
	b := base{
		logger: log.With(slog.String("service", "contacts")),
		clock:  time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) now() time.Time {
	return b.clock().In(b.loc)
}

// entry wraps note in a timestamped context entry.
func (b base) entry(note string) string {
	return fmt.Sprintf("[%s] %s", b.now().Format(entryTimeLayout), strings.TrimSpace(note))
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validateContactInput(name, note, birthday string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: contact name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(note) == "" {
		return "", fmt.Errorf("%w: note is required", ErrInvalidInput)
	}
	return NormalizeBirthday(birthday)
}
