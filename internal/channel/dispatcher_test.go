package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kithbot/kith/internal/logger"
)

type recordingSender struct {
	mu     sync.Mutex
	sent   []OutboundMessage
	typing []int64
	fail   int
}

func (s *recordingSender) Send(_ context.Context, msg OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("transient")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Typing(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = append(s.typing, chatID)
	return nil
}

// fakeInboundProcessor records the order messages arrive in per chat.
type fakeInboundProcessor struct {
	mu      sync.Mutex
	perChat map[int64][]string
	traces  []string
	scoped  bool
	delay   time.Duration
	wg      *sync.WaitGroup
	err     error
}

func (f *fakeInboundProcessor) HandleInbound(ctx context.Context, msg InboundMessage, sender Sender) error {
	defer f.wg.Done()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	_, scoped := logger.Lookup(ctx)
	f.mu.Lock()
	if f.perChat == nil {
		f.perChat = map[int64][]string{}
	}
	f.perChat[msg.ChatID] = append(f.perChat[msg.ChatID], msg.Text)
	f.traces = append(f.traces, msg.ID)
	f.scoped = scoped
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return sender.Send(ctx, OutboundMessage{ChatID: msg.ChatID, Text: "ok: " + msg.Text})
}

func TestDispatcherKeepsPerChatOrder(t *testing.T) {
	var wg sync.WaitGroup
	processor := &fakeInboundProcessor{wg: &wg, delay: time.Millisecond}
	sender := &recordingSender{}
	d := NewDispatcher(slog.Default(), processor, sender, 4, 8)
	d.Start()

	texts := []string{"fact", "question", "fact 2", "question 2", "fact 3"}
	chats := []int64{101, 202, 303}
	for _, text := range texts {
		for _, chat := range chats {
			wg.Add(1)
			if err := d.HandleInbound(context.Background(), InboundMessage{ChatID: chat, Text: text}); err != nil {
				t.Fatalf("handle inbound: %v", err)
			}
		}
	}
	wg.Wait()

	for _, chat := range chats {
		got := processor.perChat[chat]
		if len(got) != len(texts) {
			t.Fatalf("chat %d: got %d messages, want %d", chat, len(got), len(texts))
		}
		for i := range texts {
			if got[i] != texts[i] {
				t.Fatalf("chat %d out of order: %v", chat, got)
			}
		}
	}
	if len(sender.sent) != len(texts)*len(chats) {
		t.Fatalf("expected %d replies, got %d", len(texts)*len(chats), len(sender.sent))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestDispatcherAssignsTraceIDs(t *testing.T) {
	var wg sync.WaitGroup
	processor := &fakeInboundProcessor{wg: &wg}
	d := NewDispatcher(nil, processor, &recordingSender{}, 1, 4)

	wg.Add(2)
	_ = d.HandleInbound(context.Background(), InboundMessage{ChatID: 1, Text: "a"})
	_ = d.HandleInbound(context.Background(), InboundMessage{ChatID: 1, Text: "b", ID: "given"})
	wg.Wait()

	if len(processor.traces) != 2 {
		t.Fatalf("expected 2 traces, got %v", processor.traces)
	}
	if processor.traces[0] == "" || processor.traces[0] == "given" {
		t.Fatalf("expected generated trace id, got %q", processor.traces[0])
	}
	if processor.traces[1] != "given" {
		t.Fatalf("expected caller trace id to be kept, got %q", processor.traces[1])
	}
	if !processor.scoped {
		t.Fatal("expected a context-scoped logger")
	}
	_ = d.Stop(context.Background())
}

func TestDispatcherContinuesAfterProcessorError(t *testing.T) {
	var wg sync.WaitGroup
	processor := &fakeInboundProcessor{wg: &wg, err: errors.New("boom")}
	d := NewDispatcher(nil, processor, &recordingSender{}, 1, 4)

	wg.Add(2)
	_ = d.HandleInbound(context.Background(), InboundMessage{ChatID: 1, Text: "a"})
	_ = d.HandleInbound(context.Background(), InboundMessage{ChatID: 1, Text: "b"})
	wg.Wait()

	if got := processor.perChat[1]; len(got) != 2 {
		t.Fatalf("expected both messages handled, got %v", got)
	}
	_ = d.Stop(context.Background())
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d := NewDispatcher(nil, &fakeInboundProcessor{wg: &sync.WaitGroup{}}, &recordingSender{}, 2, 1)
	d.Start()
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// A second stop is harmless.
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	err := d.HandleInbound(context.Background(), InboundMessage{ChatID: 1, Text: "late"})
	if !errors.Is(err, ErrDispatcherStopped) {
		t.Fatalf("expected ErrDispatcherStopped, got %v", err)
	}
}

func TestDispatcherRequiresProcessor(t *testing.T) {
	d := NewDispatcher(nil, nil, &recordingSender{}, 1, 1)
	if err := d.HandleInbound(context.Background(), InboundMessage{ChatID: 1}); err == nil {
		t.Fatal("expected error without processor")
	}
}

func TestDispatcherShardIsStable(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, 3, 1)
	for _, chat := range []int64{1, 42, -1001234567890} {
		first := d.shard(chat)
		if first < 0 || first >= 3 {
			t.Fatalf("shard out of range: %d", first)
		}
		if d.shard(chat) != first {
			t.Fatalf("shard for %d is not stable", chat)
		}
	}
}
