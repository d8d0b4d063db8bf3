package assistant

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kithbot/kith/internal/contacts"
	"github.com/kithbot/kith/internal/llm"
)

// Kind tags a classified message.
type Kind string

const (
	KindFact     Kind = "fact"
	KindQuestion Kind = "question"
)

// Fact is a note to store about a contact.
type Fact struct {
	Name    string
	Content string
	// Birthday is YYYY-MM-DD or empty.
	Birthday string
}

// Question asks about a stored contact.
type Question struct {
	Name    string
	Content string
}

// Classification is the routing decision for one message. Exactly one of
// Fact and Question is set, matching Kind.
type Classification struct {
	Kind     Kind
	Fact     *Fact
	Question *Question
}

// ClassificationError reports a classifier answer that cannot be routed.
type ClassificationError struct {
	Reason string
	Raw    string
}

func (e *ClassificationError) Error() string {
	return "classification: " + e.Reason
}

// GenerationError reports a failed call to the text service.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type rawClassification struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Birthday any    `json:"birthday"`
}

// parseClassification validates the classifier's JSON answer. An unusable
// birthday is dropped with a warning and the fact is kept.
func parseClassification(log *slog.Logger, raw string) (Classification, error) {
	var parsed rawClassification
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil {
		return Classification{}, &ClassificationError{Reason: "invalid json: " + err.Error(), Raw: raw}
	}
	name := strings.TrimSpace(parsed.Name)
	content := strings.TrimSpace(parsed.Content)
	if name == "" {
		return Classification{}, &ClassificationError{Reason: "missing name", Raw: raw}
	}
	if content == "" {
		return Classification{}, &ClassificationError{Reason: "missing content", Raw: raw}
	}

	switch Kind(strings.ToLower(strings.TrimSpace(parsed.Type))) {
	case KindFact:
		return Classification{
			Kind: KindFact,
			Fact: &Fact{Name: name, Content: content, Birthday: birthdayValue(log, parsed.Birthday)},
		}, nil
	case KindQuestion:
		return Classification{
			Kind:     KindQuestion,
			Question: &Question{Name: name, Content: content},
		}, nil
	default:
		return Classification{}, &ClassificationError{Reason: fmt.Sprintf("unknown type %q", parsed.Type), Raw: raw}
	}
}

func birthdayValue(log *slog.Logger, value any) string {
	text, ok := value.(string)
	if !ok {
		if value != nil {
			log.Warn("drop non-string birthday", slog.Any("birthday", value))
		}
		return ""
	}
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "null") {
		return ""
	}
	normalized, err := contacts.NormalizeBirthday(text)
	if err != nil {
		log.Warn("drop invalid birthday", slog.String("birthday", text), slog.Any("error", err))
		return ""
	}
	return normalized
}
