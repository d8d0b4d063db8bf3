package reminder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kithbot/kith/internal/channel"
	"github.com/kithbot/kith/internal/contacts"
	"github.com/kithbot/kith/internal/llm"
)

const reminderHeader = "🎉 Birthday reminder!\n\n%s"

const reminderPrompt = `You write short, friendly birthday reminders for a user about people they know.
Mention when the birthday is and suggest one or two gift or greeting ideas based on the notes.
Keep it under five sentences. Write in the language the notes are written in.`

func reminderUserPrompt(item contacts.Upcoming) string {
	when := fmt.Sprintf("in %d days", item.DaysUntil)
	switch item.DaysUntil {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	}
	return fmt.Sprintf("%s's birthday is %s.\n\nNotes about %s:\n%s\n\nWrite the reminder:",
		item.Contact.Name, when, item.Contact.Name, item.Contact.Context)
}

// Run performs one reminder pass. A pass that already completed on the
// current day in the scheduler's timezone is skipped. One contact's failure
// does not stop the others.
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	today := s.now().In(s.loc).Format(dayLayout)
	if s.lastRun == today {
		s.logger.Info("reminder already sent today", slog.String("day", today))
		return Report{Skipped: true}, nil
	}

	s.logger.Info("checking upcoming birthdays", slog.Int("days_ahead", s.daysAhead))
	upcoming, err := s.source.UpcomingBirthdays(ctx, s.daysAhead)
	if err != nil {
		return Report{}, fmt.Errorf("query upcoming birthdays: %w", err)
	}
	s.lastRun = today

	report := Report{Matched: len(upcoming)}
	for _, item := range upcoming {
		log := s.logger.With(
			slog.Int64("user_id", item.Contact.UserID),
			slog.Int64("contact_id", item.Contact.ID),
			slog.String("contact", item.Contact.Name),
			slog.Int("days_until", item.DaysUntil),
		)
		if err := s.remind(ctx, item); err != nil {
			report.Failed++
			log.Error("send reminder failed", slog.Any("error", err))
			continue
		}
		report.Sent++
		log.Info("reminder sent")
	}
	s.logger.Info("reminder pass complete",
		slog.Int("matched", report.Matched),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Scheduler) remind(ctx context.Context, item contacts.Upcoming) error {
	text, err := s.text.Complete(ctx, llm.NewRequest(s.tier, reminderPrompt, reminderUserPrompt(item)))
	if err != nil {
		return fmt.Errorf("generate reminder: %w", err)
	}
	return s.notifier.Send(ctx, channel.OutboundMessage{
		ChatID: item.Contact.UserID,
		Text:   fmt.Sprintf(reminderHeader, text),
		Format: channel.MessageFormatPlain,
	})
}
