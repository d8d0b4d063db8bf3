// Package assistant classifies incoming notes and routes them to the contact
// store or to answer generation.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kithbot/kith/internal/config"
	"github.com/kithbot/kith/internal/contacts"
	"github.com/kithbot/kith/internal/llm"
	"github.com/kithbot/kith/internal/logger"
)

const (
	savedReply       = "✅ Saved a note about %s."
	birthdayReply    = "\n🎂 Birthday: %s."
	unknownReply     = "🤷 I have no information about %s yet. Tell me something about them first."
	ForgotHelpFooter = "\n\nForgot what I can do? Send /help"
)

// TextService generates text from a prompt.
type TextService interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Pipeline turns a user's message into a stored fact or a generated answer.
type Pipeline struct {
	store      contacts.Store
	text       TextService
	classifier config.ModelTier
	answer     config.ModelTier
	logger     *slog.Logger
}

// NewPipeline creates a pipeline using the classifier and answer tiers of cfg.
func NewPipeline(log *slog.Logger, store contacts.Store, text TextService, cfg config.OpenAIConfig) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		store:      store,
		text:       text,
		classifier: cfg.Classifier,
		answer:     cfg.Answer,
		logger:     log.With(slog.String("service", "assistant")),
	}
}

// Process classifies text and routes it. Nothing is written unless
// classification succeeds.
func (p *Pipeline) Process(ctx context.Context, userID int64, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &ClassificationError{Reason: "empty message"}
	}
	result, err := p.Classify(ctx, text)
	if err != nil {
		return "", err
	}
	switch result.Kind {
	case KindFact:
		return p.RouteFact(ctx, userID, *result.Fact)
	case KindQuestion:
		return p.RouteQuestion(ctx, userID, *result.Question)
	default:
		return "", &ClassificationError{Reason: fmt.Sprintf("unknown kind %q", result.Kind)}
	}
}

// Classify asks the classifier tier whether text is a fact or a question.
func (p *Pipeline) Classify(ctx context.Context, text string) (Classification, error) {
	req := llm.NewRequest(p.classifier, classifierPrompt, text)
	req.JSON = true
	raw, err := p.text.Complete(ctx, req)
	if err != nil {
		return Classification{}, &GenerationError{Op: "classify", Err: err}
	}
	result, err := parseClassification(p.log(ctx), raw)
	if err != nil {
		p.log(ctx).Warn("unusable classification", slog.Any("error", err), slog.String("raw", raw))
		return Classification{}, err
	}
	return result, nil
}

// RouteFact appends the fact to the named contact, creating it when absent.
func (p *Pipeline) RouteFact(ctx context.Context, userID int64, fact Fact) (string, error) {
	log := p.log(ctx).With(slog.Int64("user_id", userID), slog.String("contact", fact.Name))

	existing, err := p.store.FindContact(ctx, userID, fact.Name)
	switch {
	case err == nil:
		if _, err := p.store.AppendContact(ctx, existing.ID, fact.Content, fact.Birthday); err != nil {
			return "", fmt.Errorf("append contact: %w", err)
		}
		log.Info("fact appended", slog.Int64("contact_id", existing.ID))
	case errors.Is(err, contacts.ErrNotFound):
		created, err := p.store.CreateContact(ctx, userID, fact.Name, fact.Content, fact.Birthday)
		if err != nil {
			return "", fmt.Errorf("create contact: %w", err)
		}
		log.Info("contact created", slog.Int64("contact_id", created.ID))
	default:
		return "", fmt.Errorf("find contact: %w", err)
	}

	reply := fmt.Sprintf(savedReply, fact.Name)
	if formatted, ok := contacts.FormatBirthday(fact.Birthday); ok {
		reply += fmt.Sprintf(birthdayReply, formatted)
	}
	return reply + ForgotHelpFooter, nil
}

// RouteQuestion answers a question from the named contact's stored notes.
func (p *Pipeline) RouteQuestion(ctx context.Context, userID int64, question Question) (string, error) {
	contact, err := p.store.FindContact(ctx, userID, question.Name)
	if err != nil {
		if errors.Is(err, contacts.ErrNotFound) {
			return fmt.Sprintf(unknownReply, question.Name), nil
		}
		return "", fmt.Errorf("find contact: %w", err)
	}

	birthday, _ := contacts.FormatBirthday(contact.Birthday)
	prompt := answerUserPrompt(contact.Name, contact.Context, birthday, question.Content)
	answer, err := p.text.Complete(ctx, llm.NewRequest(p.answer, answerPrompt, prompt))
	if err != nil {
		return "", &GenerationError{Op: "answer", Err: err}
	}
	return answer + ForgotHelpFooter, nil
}

func (p *Pipeline) log(ctx context.Context) *slog.Logger {
	if l, ok := logger.Lookup(ctx); ok {
		return l.With(slog.String("service", "assistant"))
	}
	return p.logger
}
