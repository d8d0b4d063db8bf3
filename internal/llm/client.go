// Package llm wraps the OpenAI chat completion and audio transcription APIs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/kithbot/kith/internal/config"
)

// ErrEmptyResponse is returned when the service answers without content.
var ErrEmptyResponse = errors.New("llm response missing content")

// Request is one chat completion call.
type Request struct {
	Model       string
	Temperature float32
	MaxTokens   int
	System      string
	Prompt      string
	// JSON asks the model for a single JSON object.
	JSON bool
}

// NewRequest builds a request from a configured model tier.
func NewRequest(tier config.ModelTier, system, prompt string) Request {
	return Request{
		Model:       tier.Model,
		Temperature: tier.Temperature,
		MaxTokens:   tier.MaxTokens,
		System:      system,
		Prompt:      prompt,
	}
}

// Client calls OpenAI with a per-call deadline.
type Client struct {
	client   *openai.Client
	logger   *slog.Logger
	timeout  time.Duration
	sttModel string
	language string
}

// NewClient creates a client from the openai configuration section.
func NewClient(log *slog.Logger, cfg config.OpenAIConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm client: api key is required")
	}
	if log == nil {
		log = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	sttModel := cfg.TranscriptionModel
	if sttModel == "" {
		sttModel = config.DefaultTranscriptionModel
	}
	return &Client{
		client:   openai.NewClientWithConfig(clientCfg),
		logger:   log.With(slog.String("client", "llm")),
		timeout:  cfg.Timeout(),
		sttModel: sttModel,
		language: cfg.TranscriptionLanguage,
	}, nil
}

// Complete runs one chat completion and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", fmt.Errorf("llm: model is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	temperature := req.Temperature
	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	c.logger.Debug("chat completion",
		slog.String("model", req.Model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("elapsed", time.Since(started)),
	)
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// Transcribe converts speech read from r into text. fileName carries the
// audio format to the service (e.g. "voice.ogg").
func (c *Client) Transcribe(ctx context.Context, r io.Reader, fileName string) (string, error) {
	if fileName == "" {
		fileName = "voice.ogg"
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.sttModel,
		FilePath: fileName,
		Reader:   r,
		Language: c.language,
	})
	if err != nil {
		return "", fmt.Errorf("create transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// StripCodeFence removes markdown code fences some models wrap JSON in.
func StripCodeFence(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(text, "```json", ""), "```", ""))
}
