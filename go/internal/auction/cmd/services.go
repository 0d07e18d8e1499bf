package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mcdev12/auctioneer/go/internal/auction/catalog"
	"github.com/mcdev12/auctioneer/go/internal/auction/engine"
	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/auction/export"
	"github.com/mcdev12/auctioneer/go/internal/auction/gateway"
	"github.com/mcdev12/auctioneer/go/internal/auction/notifier"
	"github.com/mcdev12/auctioneer/go/internal/auction/publisher"
	"github.com/mcdev12/auctioneer/go/internal/auction/snapshot"
	"github.com/mcdev12/auctioneer/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Services is the wired auction process.
type Services struct {
	Engine      *engine.Engine
	Dispatcher  *events.Dispatcher
	Persister   *snapshot.Persister
	Connections *gateway.ConnectionManager
	Handler     *gateway.Handler
	WebSocket   *gateway.WebSocketHandler
	Exporter    *export.Exporter

	closers []func()
	wg      sync.WaitGroup
}

// Start runs the background loops until ctx is cancelled.
func (s *Services) Start(ctx context.Context) {
	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		if err := s.Dispatcher.Run(ctx); err != nil {
			log.Error().Err(err).Msg("event dispatcher failed")
		}
	}()
	go func() {
		defer s.wg.Done()
		if err := s.Persister.Run(ctx); err != nil {
			log.Error().Err(err).Msg("snapshot persister failed")
		}
	}()
	go func() {
		defer s.wg.Done()
		s.Connections.Start(ctx)
	}()
}

// Wait blocks until the loops started by Start have returned. The dispatcher
// and persister flush their queues before returning.
func (s *Services) Wait() {
	s.wg.Wait()
}

// Close releases external connections.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStore returns the configured snapshot store and its cleanup func.
func openStore(ctx context.Context, env EnvConfig) (snapshot.Store, func(), error) {
	switch env.SnapshotStore {
	case "file", "":
		return snapshot.NewFileStore(env.SnapshotPath), func() {}, nil
	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv()
		pool, err := dbconfig.Connect(ctx, dbCfg)
		if err != nil {
			return nil, nil, err
		}
		store := snapshot.NewPostgresStore(pool, env.AuctionID)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Str("database", dbCfg.Database).Str("auction_id", env.AuctionID).Msg("using postgres snapshot store")
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown SNAPSHOT_STORE %q", env.SnapshotStore)
	}
}

func setupServices(ctx context.Context, env EnvConfig, cfg *Config) (*Services, error) {
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, env)
	if err != nil {
		return nil, err
	}
	s := &Services{
		Dispatcher:  events.NewDispatcher(env.EventQueueSize),
		Persister:   snapshot.NewPersister(store),
		Connections: gateway.NewConnectionManager(gateway.DefaultConnectionConfig()),
		closers:     []func(){closeStore},
	}

	opts := []engine.Option{
		engine.WithSink(s.Dispatcher),
		engine.WithPersister(s.Persister),
		engine.WithSettings(settings),
	}
	snap, err := store.Load(ctx)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		s.Engine = engine.New(opts...)
		if err := seed(ctx, s.Engine, cfg); err != nil {
			s.Close()
			return nil, err
		}
		log.Info().Int("teams", len(cfg.Teams)).Msg("started new auction")
	case err != nil:
		s.Close()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	default:
		s.Engine, err = engine.Restore(snap, opts...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to restore snapshot: %w", err)
		}
		log.Info().
			Uint64("round_seq", snap.RoundSeq).
			Int("teams", len(snap.Teams)).
			Int("history", len(snap.History)).
			Msg("restored auction from snapshot")
	}

	s.Handler = gateway.NewHandler(s.Engine, nil)
	s.WebSocket = gateway.NewWebSocketHandler(s.Connections, s.Handler.CurrentState)
	s.Exporter = export.NewExporter(s.Engine, env.ExportDir, nil)

	s.Dispatcher.Subscribe("gateway", s.Connections)
	s.Dispatcher.Subscribe("exporter", s.Exporter)

	if env.NatsURL != "" {
		jsCfg := publisher.DefaultJetStreamConfig()
		jsCfg.URL = env.NatsURL
		jsCfg.AuctionID = env.AuctionID
		pub, err := publisher.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := pub.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close event publisher")
			}
		})
		s.Dispatcher.Subscribe("publisher", pub)
	}

	if env.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(env.TelegramToken)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create telegram bot: %w", err)
		}
		n := notifier.New(bot, notifier.NewTelegramResolver(bot), notifier.Config{
			ChatID:   env.TelegramChatID,
			Currency: env.Currency,
		})
		s.Dispatcher.Subscribe("notifier", n)
		log.Info().Str("bot", bot.Self.UserName).Int64("chat_id", env.TelegramChatID).Msg("telegram notifier enabled")
	}

	return s, nil
}

// seed applies the config file to a fresh engine.
func seed(ctx context.Context, e *engine.Engine, cfg *Config) error {
	for _, t := range cfg.Teams {
		purse, err := decimal.NewFromString(t.Purse)
		if err != nil {
			return fmt.Errorf("team %q: invalid purse %q: %w", t.Name, t.Purse, err)
		}
		if err := e.RegisterTeamWithCaptain(ctx, t.Name, purse, t.Captain); err != nil {
			return err
		}
	}
	if cfg.Owner != "" {
		if err := e.SetOwner(ctx, cfg.Owner); err != nil {
			return err
		}
	}
	for _, id := range cfg.Admins {
		if err := e.AddAdmin(ctx, id); err != nil {
			return err
		}
	}
	if cfg.Catalog != "" {
		f, err := os.Open(cfg.Catalog)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer f.Close()
		lots, err := catalog.ReadCSV(f)
		if err != nil {
			return fmt.Errorf("failed to read catalog %s: %w", cfg.Catalog, err)
		}
		if err := e.LoadCatalog(ctx, lots); err != nil {
			return err
		}
	}
	return nil
}
