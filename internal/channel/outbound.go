package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Chunker splits text into pieces of at most limit runes.
type Chunker func(text string, limit int) []string

// OutboundPolicy bounds message size and send retries.
type OutboundPolicy struct {
	TextChunkLimit int
	RetryMax       int
	RetryBackoff   time.Duration
}

func NormalizeOutboundPolicy(policy OutboundPolicy) OutboundPolicy {
	if policy.TextChunkLimit <= 0 {
		policy.TextChunkLimit = 4000
	}
	if policy.RetryMax <= 0 {
		policy.RetryMax = 3
	}
	if policy.RetryBackoff <= 0 {
		policy.RetryBackoff = 500 * time.Millisecond
	}
	return policy
}

// ReplySender splits long texts into chunks and retries failed sends.
type ReplySender struct {
	sender Sender
	policy OutboundPolicy
	logger *slog.Logger
}

func NewReplySender(log *slog.Logger, sender Sender, policy OutboundPolicy) *ReplySender {
	if log == nil {
		log = slog.Default()
	}
	return &ReplySender{
		sender: sender,
		policy: NormalizeOutboundPolicy(policy),
		logger: log.With(slog.String("component", "outbound")),
	}
}

func (s *ReplySender) Send(ctx context.Context, msg OutboundMessage) error {
	if msg.IsEmpty() {
		return fmt.Errorf("message is required")
	}
	if msg.ChatID == 0 {
		return fmt.Errorf("chat id is required")
	}
	var chunker Chunker = ChunkText
	if msg.Format == MessageFormatMarkdown {
		chunker = ChunkMarkdownText
	}
	for _, chunk := range chunker(msg.Text, s.policy.TextChunkLimit) {
		item := msg
		item.Text = chunk
		if err := s.sendWithRetry(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReplySender) Typing(ctx context.Context, chatID int64) error {
	return s.sender.Typing(ctx, chatID)
}

func (s *ReplySender) sendWithRetry(ctx context.Context, msg OutboundMessage) error {
	var lastErr error
	for i := 0; i < s.policy.RetryMax; i++ {
		err := s.sender.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Warn("send outbound retry",
			slog.Int64("chat_id", msg.ChatID),
			slog.Int("attempt", i+1),
			slog.Any("error", err))
		if i == s.policy.RetryMax-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("send outbound: %w", ctx.Err())
		case <-time.After(time.Duration(i+1) * s.policy.RetryBackoff):
		}
	}
	return fmt.Errorf("send outbound failed after retries: %w", lastErr)
}

func ChunkText(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 || runeLen(trimmed) <= limit {
		return []string{trimmed}
	}
	lines := strings.Split(trimmed, "\n")
	chunks := make([]string, 0)
	buf := make([]string, 0, len(lines))
	bufLen := 0
	for _, line := range lines {
		lineLen := runeLen(line)
		sepLen := 0
		if len(buf) > 0 {
			sepLen = 1
		}
		if bufLen+sepLen+lineLen <= limit {
			buf = append(buf, line)
			bufLen += sepLen + lineLen
			continue
		}
		if len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, "\n"))
			buf = buf[:0]
			bufLen = 0
		}
		if lineLen <= limit {
			buf = append(buf, line)
			bufLen = lineLen
			continue
		}
		chunks = append(chunks, splitLongLine(line, limit)...)
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, "\n"))
	}
	return chunks
}

// ChunkMarkdownText prefers paragraph boundaries so markup is not cut in half.
func ChunkMarkdownText(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 || runeLen(trimmed) <= limit {
		return []string{trimmed}
	}
	paragraphs := strings.Split(trimmed, "\n\n")
	chunks := make([]string, 0)
	buf := make([]string, 0, len(paragraphs))
	bufLen := 0
	for _, para := range paragraphs {
		paraLen := runeLen(para)
		sepLen := 0
		if len(buf) > 0 {
			sepLen = 2
		}
		if bufLen+sepLen+paraLen <= limit {
			buf = append(buf, para)
			bufLen += sepLen + paraLen
			continue
		}
		if len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, "\n\n"))
			buf = buf[:0]
			bufLen = 0
		}
		if paraLen <= limit {
			buf = append(buf, para)
			bufLen = paraLen
			continue
		}
		chunks = append(chunks, ChunkText(para, limit)...)
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, "\n\n"))
	}
	return chunks
}

func runeLen(value string) int {
	return len([]rune(value))
}

func splitLongLine(line string, limit int) []string {
	if limit <= 0 {
		return []string{line}
	}
	runes := []rune(line)
	chunks := make([]string, 0)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		segment := strings.TrimSpace(string(runes[start:end]))
		if segment == "" {
			continue
		}
		chunks = append(chunks, segment)
	}
	return chunks
}
