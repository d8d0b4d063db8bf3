// Package handlers turns inbound chat messages into store updates, pipeline
// calls and replies.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kithbot/kith/internal/assistant"
	"github.com/kithbot/kith/internal/channel"
	"github.com/kithbot/kith/internal/config"
	"github.com/kithbot/kith/internal/contacts"
	"github.com/kithbot/kith/internal/llm"
	"github.com/kithbot/kith/internal/logger"
)

// ContactBook is the part of the contact store the chat commands read.
type ContactBook interface {
	UpsertUser(ctx context.Context, user contacts.User) error
	ListContacts(ctx context.Context, userID int64) ([]contacts.Contact, error)
	Stats(ctx context.Context, userID int64) (contacts.Stats, error)
}

// Assistant classifies and routes free text.
type Assistant interface {
	Process(ctx context.Context, userID int64, text string) (string, error)
}

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// Rescheduler moves the daily reminder trigger.
type Rescheduler interface {
	Reschedule(hhmm string) error
	Next() time.Time
}

// ChatHandler implements channel.InboundProcessor for the bot.
type ChatHandler struct {
	book        ContactBook
	assistant   Assistant
	transcriber Transcriber
	reminders   Rescheduler
	admin       config.AdminConfig
	logger      *slog.Logger
}

func NewChatHandler(log *slog.Logger, book ContactBook, assistant Assistant, transcriber Transcriber, reminders Rescheduler, admin config.AdminConfig) *ChatHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChatHandler{
		book:        book,
		assistant:   assistant,
		transcriber: transcriber,
		reminders:   reminders,
		admin:       admin,
		logger:      log.With(slog.String("handler", "chat")),
	}
}

// HandleInbound records the sender and dispatches on message kind.
func (h *ChatHandler) HandleInbound(ctx context.Context, msg channel.InboundMessage, sender channel.Sender) error {
	log := h.log(ctx).With(slog.String("sender", msg.Sender.DisplayName()))
	if err := h.book.UpsertUser(ctx, contacts.User{
		ID:        msg.Sender.UserID,
		Username:  msg.Sender.Username,
		FirstName: msg.Sender.FirstName,
	}); err != nil {
		log.Error("upsert user failed", slog.Any("error", err))
	}

	r := replier{sender: sender, chatID: msg.ChatID}
	switch {
	case msg.IsCommand():
		return h.handleCommand(ctx, log, msg, r)
	case msg.Voice != nil:
		return h.handleVoice(ctx, log, msg, r)
	default:
		return h.handleText(ctx, log, msg.Sender.UserID, msg.Text, r)
	}
}

func (h *ChatHandler) handleCommand(ctx context.Context, log *slog.Logger, msg channel.InboundMessage, r replier) error {
	log.Info("command", slog.String("command", msg.Command))
	switch msg.Command {
	case "start":
		return r.plain(ctx, startMessage)
	case "help":
		return r.markdown(ctx, helpMessage)
	case "stats":
		return h.stats(ctx, msg.Sender.UserID, r)
	case "list":
		return h.list(ctx, msg.Sender.UserID, r)
	case "admin":
		return h.adminCommand(ctx, log, msg.Args, r)
	default:
		return r.plain(ctx, unknownCommand)
	}
}

func (h *ChatHandler) stats(ctx context.Context, userID int64, r replier) error {
	stats, err := h.book.Stats(ctx, userID)
	if err != nil {
		_ = r.plain(ctx, generalFailure)
		return fmt.Errorf("stats: %w", err)
	}
	return r.plain(ctx, fmt.Sprintf(statsMessage, stats.Total, stats.WithBirthdays))
}

func (h *ChatHandler) list(ctx context.Context, userID int64, r replier) error {
	items, err := h.book.ListContacts(ctx, userID)
	if err != nil {
		_ = r.plain(ctx, generalFailure)
		return fmt.Errorf("list contacts: %w", err)
	}
	if len(items) == 0 {
		return r.plain(ctx, listEmptyMessage)
	}
	return r.plain(ctx, formatContactList(items))
}

func formatContactList(items []contacts.Contact) string {
	var b strings.Builder
	b.WriteString(listHeader)
	for _, c := range items {
		b.WriteString("👤 " + c.Name + "\n")
		if day, ok := contacts.FormatBirthday(c.Birthday); ok {
			b.WriteString("   🎂 " + day + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *ChatHandler) adminCommand(ctx context.Context, log *slog.Logger, args []string, r replier) error {
	if len(args) != 2 {
		return r.plain(ctx, adminUsage)
	}
	if !secretMatches(h.admin, args[0]) {
		log.Warn("admin secret rejected")
		return r.plain(ctx, adminInvalidSecret)
	}
	if err := h.reminders.Reschedule(args[1]); err != nil {
		log.Warn("reschedule failed", slog.String("time", args[1]), slog.Any("error", err))
		return r.plain(ctx, adminFailure)
	}
	next := h.reminders.Next()
	log.Info("reminder time changed", slog.String("time", args[1]), slog.Time("next", next))
	if next.IsZero() {
		return r.plain(ctx, fmt.Sprintf(adminSuccess, args[1]))
	}
	return r.plain(ctx, fmt.Sprintf(adminSuccessNext, args[1], next.Format(nextRunLayout)))
}

func (h *ChatHandler) handleVoice(ctx context.Context, log *slog.Logger, msg channel.InboundMessage, r replier) error {
	h.typing(ctx, log, r)
	text, err := h.transcribe(ctx, msg)
	if errors.Is(err, llm.ErrEmptyResponse) {
		return r.plain(ctx, voiceEmpty)
	}
	if err != nil {
		log.Error("voice transcription failed", slog.String("file_id", msg.Voice.FileID), slog.Any("error", err))
		return r.plain(ctx, fmt.Sprintf(voiceFailure, err))
	}
	if strings.TrimSpace(text) == "" {
		return r.plain(ctx, voiceEmpty)
	}
	log.Debug("voice transcribed", slog.Int("length", len(text)))
	return h.handleText(ctx, log, msg.Sender.UserID, text, r)
}

func (h *ChatHandler) transcribe(ctx context.Context, msg channel.InboundMessage) (string, error) {
	if msg.Voice.Open == nil {
		return "", errors.New("voice file is not available")
	}
	body, err := msg.Voice.Open(ctx)
	if err != nil {
		return "", err
	}
	defer body.Close()
	return h.transcriber.Transcribe(ctx, body, fmt.Sprintf("voice_%d.ogg", msg.Sender.UserID))
}

func (h *ChatHandler) handleText(ctx context.Context, log *slog.Logger, userID int64, text string, r replier) error {
	h.typing(ctx, log, r)
	reply, err := h.assistant.Process(ctx, userID, text)
	if err != nil {
		var classErr *assistant.ClassificationError
		if errors.As(err, &classErr) {
			log.Warn("message not understood", slog.String("reason", classErr.Reason))
			return r.plain(ctx, notUnderstood)
		}
		log.Error("process message failed", slog.Any("error", err))
		return r.plain(ctx, generalFailure)
	}
	return r.plain(ctx, reply)
}

func (h *ChatHandler) typing(ctx context.Context, log *slog.Logger, r replier) {
	if err := r.sender.Typing(ctx, r.chatID); err != nil {
		log.Debug("typing indicator failed", slog.Any("error", err))
	}
}

func (h *ChatHandler) log(ctx context.Context) *slog.Logger {
	if l, ok := logger.Lookup(ctx); ok {
		return l.With(slog.String("handler", "chat"))
	}
	return h.logger
}

type replier struct {
	sender channel.Sender
	chatID int64
}

func (r replier) plain(ctx context.Context, text string) error {
	return r.sender.Send(ctx, channel.OutboundMessage{ChatID: r.chatID, Text: text, Format: channel.MessageFormatPlain})
}

func (r replier) markdown(ctx context.Context, text string) error {
	return r.sender.Send(ctx, channel.OutboundMessage{ChatID: r.chatID, Text: text, Format: channel.MessageFormatMarkdown})
}
