// Package telegram connects the bot to the Telegram Bot API over long polling.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/kithbot/kith/internal/channel"
	"github.com/kithbot/kith/internal/channel/adapters/adapterutil"
	"github.com/kithbot/kith/internal/config"
)

const adapterName = "telegram"

var _ channel.Adapter = (*TelegramAdapter)(nil)

// TelegramAdapter receives updates by long polling and sends replies through
// a shared rate limiter.
type TelegramAdapter struct {
	bot         *tgbotapi.BotAPI
	logger      *slog.Logger
	limiter     *rate.Limiter
	http        *http.Client
	pollTimeout int
	fileURL     func(fileID string) (string, error)
}

// NewTelegramAdapter authenticates against the Bot API with cfg.BotToken.
func NewTelegramAdapter(log *slog.Logger, cfg config.TelegramConfig) (*TelegramAdapter, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return newAdapter(log, bot, cfg), nil
}

func newAdapter(log *slog.Logger, bot *tgbotapi.BotAPI, cfg config.TelegramConfig) *TelegramAdapter {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("adapter", adapterName))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: log})

	sendRate := rate.Limit(cfg.SendRate)
	if cfg.SendRate <= 0 {
		sendRate = rate.Inf
	}
	burst := int(cfg.SendRate)
	if burst < 1 {
		burst = 1
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	a := &TelegramAdapter{
		bot:         bot,
		logger:      log,
		limiter:     rate.NewLimiter(sendRate, burst),
		http:        &http.Client{Timeout: 60 * time.Second},
		pollTimeout: pollTimeout,
	}
	a.fileURL = bot.GetFileDirectURL
	return a
}

func (a *TelegramAdapter) Name() string {
	return adapterName
}

// Username returns the bot's own username.
func (a *TelegramAdapter) Username() string {
	return a.bot.Self.UserName
}

// Connect starts long polling and passes every usable message to handler.
func (a *TelegramAdapter) Connect(ctx context.Context, handler channel.InboundHandler) (channel.Connection, error) {
	if handler == nil {
		return nil, fmt.Errorf("inbound handler is required")
	}
	a.logger.Info("start", slog.String("bot", a.bot.Self.UserName))

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = a.pollTimeout
	updates := a.bot.GetUpdatesChan(updateConfig)
	connCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				msg, ok := a.toInbound(update.Message)
				if !ok {
					continue
				}
				a.logger.Debug("inbound received",
					slog.Int64("chat_id", msg.ChatID),
					slog.Int64("user_id", msg.Sender.UserID),
					slog.String("command", msg.Command),
					slog.String("text", adapterutil.SummarizeText(msg.Text)),
					slog.Bool("voice", msg.Voice != nil),
				)
				if err := handler(connCtx, msg); err != nil {
					a.logger.Error("handle inbound failed", slog.Int64("chat_id", msg.ChatID), slog.Any("error", err))
				}
			}
		}
	}()

	stop := func(context.Context) error {
		a.logger.Info("stop")
		cancel()
		a.bot.StopReceivingUpdates()
		return nil
	}
	return channel.NewConnection(adapterName, stop), nil
}

// Send delivers one text message, waiting for the rate limiter first.
func (a *TelegramAdapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	if msg.IsEmpty() {
		return fmt.Errorf("message is required")
	}
	if msg.ChatID == 0 {
		return fmt.Errorf("telegram chat id is required")
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate limit: %w", err)
	}
	text, parseMode := formatTelegramOutput(msg.Text, msg.Format)
	message := tgbotapi.NewMessage(msg.ChatID, text)
	message.ParseMode = parseMode
	message.DisableWebPagePreview = true
	if _, err := a.bot.Send(message); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Typing shows the "typing" chat action.
func (a *TelegramAdapter) Typing(ctx context.Context, chatID int64) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate limit: %w", err)
	}
	// Chat actions answer with a bare boolean, which Send cannot decode.
	if _, err := a.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("telegram chat action: %w", err)
	}
	return nil
}

func (a *TelegramAdapter) toInbound(m *tgbotapi.Message) (channel.InboundMessage, bool) {
	if m == nil || m.Chat == nil {
		return channel.InboundMessage{}, false
	}
	msg := channel.InboundMessage{
		MessageID:  m.MessageID,
		ChatID:     m.Chat.ID,
		Sender:     resolveTelegramSender(m),
		Text:       strings.TrimSpace(m.Text),
		ReceivedAt: time.Unix(int64(m.Date), 0).UTC(),
	}
	if msg.Text == "" {
		msg.Text = strings.TrimSpace(m.Caption)
	}
	if command, args, ok := parseCommand(msg.Text, a.bot.Self.UserName); ok {
		msg.Command = command
		msg.Args = args
	}
	if m.Voice != nil {
		msg.Voice = &channel.Voice{
			FileID:   m.Voice.FileID,
			Duration: time.Duration(m.Voice.Duration) * time.Second,
			MimeType: m.Voice.MimeType,
			Open:     a.voiceOpener(m.Voice.FileID),
		}
	}
	if msg.Text == "" && msg.Voice == nil {
		return channel.InboundMessage{}, false
	}
	return msg, true
}

func resolveTelegramSender(m *tgbotapi.Message) channel.Identity {
	if m == nil {
		return channel.Identity{}
	}
	if m.From != nil {
		return channel.Identity{
			UserID:    m.From.ID,
			Username:  strings.TrimSpace(m.From.UserName),
			FirstName: strings.TrimSpace(m.From.FirstName),
		}
	}
	if m.Chat != nil {
		return channel.Identity{
			UserID:    m.Chat.ID,
			Username:  strings.TrimSpace(m.Chat.UserName),
			FirstName: strings.TrimSpace(m.Chat.FirstName),
		}
	}
	return channel.Identity{}
}

// parseCommand splits "/cmd@bot arg1 arg2". Commands addressed to another
// bot are not commands for us.
func parseCommand(text, botUsername string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	head := strings.TrimPrefix(fields[0], "/")
	name, target, addressed := strings.Cut(head, "@")
	if name == "" {
		return "", nil, false
	}
	if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

func (a *TelegramAdapter) voiceOpener(fileID string) func(ctx context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		url, err := a.fileURL(fileID)
		if err != nil {
			return nil, fmt.Errorf("resolve voice file: %w", err)
		}
		return a.download(ctx, url)
	}
}

func (a *TelegramAdapter) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download voice: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("download voice: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}
