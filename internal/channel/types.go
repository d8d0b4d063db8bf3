// Package channel holds the transport-neutral message types, the outbound
// send policy and the ordered inbound dispatcher.
package channel

import (
	"context"
	"io"
	"strings"
	"time"
)

// Identity describes who sent an inbound message.
type Identity struct {
	UserID    int64
	Username  string
	FirstName string
}

// DisplayName prefers the username and falls back to the first name.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Username); name != "" {
		return name
	}
	return strings.TrimSpace(i.FirstName)
}

// Voice references a voice note that can be downloaded on demand.
type Voice struct {
	FileID   string
	Duration time.Duration
	MimeType string
	Open     func(ctx context.Context) (io.ReadCloser, error)
}

// InboundMessage is one message received from the transport.
type InboundMessage struct {
	// ID is the trace id assigned by the dispatcher.
	ID         string
	MessageID  int
	ChatID     int64
	Sender     Identity
	Text       string
	Command    string
	Args       []string
	Voice      *Voice
	ReceivedAt time.Time
}

// IsCommand reports whether the message is a slash command.
func (m InboundMessage) IsCommand() bool {
	return m.Command != ""
}

// MessageFormat selects how outbound text is rendered.
type MessageFormat string

const (
	MessageFormatPlain    MessageFormat = "plain"
	MessageFormatMarkdown MessageFormat = "markdown"
)

// OutboundMessage is text addressed to a chat.
type OutboundMessage struct {
	ChatID int64
	Text   string
	Format MessageFormat
}

// IsEmpty reports whether there is nothing to send.
func (m OutboundMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == ""
}
