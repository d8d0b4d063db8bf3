package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/kithbot/kith/internal/assistant"
	"github.com/kithbot/kith/internal/channel"
	"github.com/kithbot/kith/internal/channel/adapters/telegram"
	"github.com/kithbot/kith/internal/config"
	"github.com/kithbot/kith/internal/contacts"
	"github.com/kithbot/kith/internal/db"
	"github.com/kithbot/kith/internal/handlers"
	"github.com/kithbot/kith/internal/llm"
	"github.com/kithbot/kith/internal/logger"
	"github.com/kithbot/kith/internal/reminder"
	"github.com/kithbot/kith/internal/version"
)

func runServe(path string) error {
	app := fx.New(
		fx.Provide(
			provideConfig(path),
			provideLogger,

			provideStore,
			provideLLMClient,
			providePipeline,

			provideTelegramAdapter,
			provideReplySender,
			provideScheduler,
			provideChatHandler,
			provideDispatcher,
		),
		fx.Invoke(
			startScheduler,
			startTelegram,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func provideConfig(path string) func() (config.Config, error) {
	return func() (config.Config, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	logger.L.Info("starting kith", slog.String("version", version.GetInfo()), slog.String("storage", cfg.Storage.Driver))
	return logger.L
}

// provideStore migrates the schema and opens the configured backend.
func provideStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (contacts.Store, error) {
	if err := db.MigrateUp(log, cfg); err != nil {
		return nil, err
	}
	loc, err := cfg.Reminder.Location()
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := db.OpenPostgres(context.Background(), cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				pool.Close()
				return nil
			},
		})
		return contacts.NewPostgresStore(log, pool, contacts.WithLocation(loc)), nil
	default:
		conn, err := db.OpenSQLite(context.Background(), cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return conn.Close()
			},
		})
		return contacts.NewSQLiteStore(log, conn, contacts.WithLocation(loc)), nil
	}
}

func provideLLMClient(log *slog.Logger, cfg config.Config) (*llm.Client, error) {
	return llm.NewClient(log, cfg.OpenAI)
}

func providePipeline(log *slog.Logger, store contacts.Store, client *llm.Client, cfg config.Config) *assistant.Pipeline {
	return assistant.NewPipeline(log, store, client, cfg.OpenAI)
}

func provideTelegramAdapter(log *slog.Logger, cfg config.Config) (*telegram.TelegramAdapter, error) {
	return telegram.NewTelegramAdapter(log, cfg.Telegram)
}

func provideReplySender(log *slog.Logger, adapter *telegram.TelegramAdapter) *channel.ReplySender {
	return channel.NewReplySender(log, adapter, channel.OutboundPolicy{})
}

func provideScheduler(log *slog.Logger, store contacts.Store, client *llm.Client, sender *channel.ReplySender, cfg config.Config) (*reminder.Scheduler, error) {
	return reminder.NewScheduler(log, store, client, sender, cfg.Reminder, cfg.OpenAI.Reminder)
}

func provideChatHandler(log *slog.Logger, store contacts.Store, pipeline *assistant.Pipeline, client *llm.Client, scheduler *reminder.Scheduler, cfg config.Config) *handlers.ChatHandler {
	return handlers.NewChatHandler(log, store, pipeline, client, scheduler, cfg.Admin)
}

func provideDispatcher(log *slog.Logger, handler *handlers.ChatHandler, sender *channel.ReplySender, cfg config.Config) *channel.Dispatcher {
	return channel.NewDispatcher(log, handler, sender, cfg.Telegram.Workers, cfg.Telegram.QueueSize)
}

func startScheduler(lc fx.Lifecycle, scheduler *reminder.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: scheduler.Start,
		OnStop:  scheduler.Stop,
	})
}

func startTelegram(lc fx.Lifecycle, log *slog.Logger, adapter *telegram.TelegramAdapter, dispatcher *channel.Dispatcher) {
	ctx, cancel := context.WithCancel(context.Background())
	var conn channel.Connection
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			dispatcher.Start()
			c, err := adapter.Connect(ctx, dispatcher.HandleInbound)
			if err != nil {
				return fmt.Errorf("connect %s: %w", adapter.Name(), err)
			}
			conn = c
			log.Info("bot is running", slog.String("username", adapter.Username()))
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if conn != nil && conn.Running() {
				if err := conn.Stop(stopCtx); err != nil {
					log.Warn("stop connection failed", slog.Any("error", err))
				}
			}
			return dispatcher.Stop(stopCtx)
		},
	})
}
