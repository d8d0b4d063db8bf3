// Package reminder runs the daily birthday reminder job.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kithbot/kith/internal/config"
)

const dayLayout = "2006-01-02"

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used for the same-day guard.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler owns the single daily reminder entry. Reschedule swaps the entry
// under a mutex so exactly one trigger is active at any time.
type Scheduler struct {
	cron      *cron.Cron
	loc       *time.Location
	source    BirthdaySource
	text      TextService
	notifier  Notifier
	tier      config.ModelTier
	daysAhead int
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	entryID cron.EntryID
	trigger TriggerTime
	started bool

	runMu   sync.Mutex
	lastRun string
}

// NewScheduler validates the reminder configuration and prepares the cron
// runner. Nothing fires until Start.
func NewScheduler(log *slog.Logger, source BirthdaySource, text TextService, notifier Notifier, cfg config.ReminderConfig, tier config.ModelTier, opts ...Option) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	trigger, err := ParseTriggerTime(cfg.Time)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if cfg.DaysAhead < 0 {
		return nil, fmt.Errorf("reminder days_ahead must not be negative")
	}
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		loc:       loc,
		source:    source,
		text:      text,
		notifier:  notifier,
		tier:      tier,
		daysAhead: cfg.DaysAhead,
		logger:    log.With(slog.String("service", "reminder")),
		now:       time.Now,
		trigger:   trigger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start installs the configured trigger and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if s.entryID == 0 {
		entryID, err := s.cron.AddFunc(s.trigger.cronSpec(), s.fire)
		if err != nil {
			return fmt.Errorf("add reminder job: %w", err)
		}
		s.entryID = entryID
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("reminder scheduler started",
		slog.String("time", s.trigger.String()),
		slog.String("timezone", s.loc.String()),
		slog.Int("days_ahead", s.daysAhead),
		slog.Time("next", s.cron.Entry(s.entryID).Next),
	)
	return nil
}

// Stop halts the cron runner and waits for a running job until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	done := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.logger.Info("reminder scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop reminder scheduler: %w", ctx.Err())
	}
}

// Reschedule moves the daily trigger to hhmm. On any error the previous
// trigger stays active.
func (s *Scheduler) Reschedule(hhmm string) error {
	trigger, err := ParseTriggerTime(hhmm)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, err := s.cron.AddFunc(trigger.cronSpec(), s.fire)
	if err != nil {
		return fmt.Errorf("add reminder job: %w", err)
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	previous := s.trigger
	s.entryID = entryID
	s.trigger = trigger
	s.logger.Info("reminder rescheduled",
		slog.String("from", previous.String()),
		slog.String("to", trigger.String()),
		slog.String("timezone", s.loc.String()),
	)
	return nil
}

func (s *Scheduler) triggerTime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trigger.String()
}

// Next returns the next fire time, or the zero time when nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	entry := s.cron.Entry(s.entryID)
	if !entry.Valid() {
		return time.Time{}
	}
	if entry.Next.IsZero() {
		return entry.Schedule.Next(s.now().In(s.loc))
	}
	return entry.Next
}

func (s *Scheduler) entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) fire() {
	if _, err := s.Run(context.Background()); err != nil {
		s.logger.Error("reminder run failed", slog.Any("error", err))
	}
}
