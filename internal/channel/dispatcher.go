package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kithbot/kith/internal/logger"
)

var ErrDispatcherStopped = errors.New("inbound dispatcher stopped")

// Dispatcher fans inbound messages out to a fixed set of workers. Messages of
// one chat always land on the same worker, so they are processed in arrival
// order while other chats proceed in parallel.
type Dispatcher struct {
	processor InboundProcessor
	sender    Sender
	logger    *slog.Logger

	queues []chan inboundTask
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	stopped   bool
}

type inboundTask struct {
	ctx context.Context
	msg InboundMessage
}

// NewDispatcher creates a dispatcher with workers queues of queueSize each.
func NewDispatcher(log *slog.Logger, processor InboundProcessor, sender Sender, workers, queueSize int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	queues := make([]chan inboundTask, workers)
	for i := range queues {
		queues[i] = make(chan inboundTask, queueSize)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		processor: processor,
		sender:    sender,
		logger:    log.With(slog.String("component", "dispatcher")),
		queues:    queues,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i, queue := range d.queues {
			d.wg.Add(1)
			go d.runWorker(i, queue)
		}
		d.logger.Info("dispatcher started", slog.Int("workers", len(d.queues)))
	})
}

// HandleInbound enqueues msg. It blocks while the chat's queue is full and
// returns when ctx is cancelled or the dispatcher stops.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg InboundMessage) error {
	if d.processor == nil {
		return fmt.Errorf("inbound processor not configured")
	}
	d.Start()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	task := inboundTask{ctx: context.WithoutCancel(ctx), msg: msg}
	select {
	case d.queues[d.shard(msg.ChatID)] <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrDispatcherStopped
	}
}

// Stop rejects new messages, lets workers drain what is queued and waits for
// them until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.cancel()
		d.mu.Lock()
		d.stopped = true
		for _, queue := range d.queues {
			close(queue)
		}
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher stop: %w", ctx.Err())
	}
}

func (d *Dispatcher) shard(chatID int64) int {
	return int(uint64(chatID) % uint64(len(d.queues)))
}

func (d *Dispatcher) runWorker(index int, queue <-chan inboundTask) {
	defer d.wg.Done()
	for task := range queue {
		d.handle(index, task)
	}
}

func (d *Dispatcher) handle(worker int, task inboundTask) {
	log := d.logger.With(
		slog.String("trace_id", task.msg.ID),
		slog.Int64("chat_id", task.msg.ChatID),
		slog.Int64("user_id", task.msg.Sender.UserID),
		slog.Int("worker", worker),
	)
	ctx := logger.WithContext(task.ctx, log)

	defer func() {
		if r := recover(); r != nil {
			log.Error("inbound processing panicked", slog.Any("panic", r))
		}
	}()
	if err := d.processor.HandleInbound(ctx, task.msg, d.sender); err != nil {
		log.Error("inbound processing failed", slog.Any("error", err))
	}
}
