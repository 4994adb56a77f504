package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/efreitasn/custodex/internal/config"
	"github.com/efreitasn/custodex/internal/engine"
	"github.com/efreitasn/custodex/internal/eventlog"
	"github.com/efreitasn/custodex/internal/handler"
	"github.com/efreitasn/custodex/internal/ledger"
	"github.com/efreitasn/custodex/internal/logger"
	"github.com/efreitasn/custodex/internal/service"
	"github.com/efreitasn/custodex/internal/store"
)

const (
	metricsNamespace = "custodex"
	relayCursor      = "kafka"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the exchange HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log, err := logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Event journal. The exchange identity it was written under is pinned
	// before anything is replayed.
	exCfg := engine.Config{
		FeeAccount: cfg.FeeAccountAddress(),
		FeePercent: cfg.Exchange.FeePercent,
	}
	var journal *eventlog.Journal
	if cfg.Journal.Dir != "" {
		var err error
		journal, err = eventlog.OpenJournal(cfg.Journal.Dir)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer func() {
			if err := journal.Close(); err != nil {
				log.Error("closing journal", zap.Error(err))
			}
		}()
		if exCfg, err = service.PinIdentity(journal, exCfg); err != nil {
			return err
		}
	}

	// Ledgers and stores.
	tokens := ledger.NewRegistry()
	custody := store.NewCustodyStore()
	orders := store.NewOrderStore()
	trades := store.NewTradeStore()
	webhooks := store.NewWebhookStore()

	ex, err := engine.NewExchange(exCfg, tokens, custody, orders, trades,
		engine.WithMetrics(engine.PrometheusMetrics(metricsNamespace)),
	)
	if err != nil {
		return fmt.Errorf("creating exchange: %w", err)
	}

	events, err := eventlog.NewLog(journal, log.Named("eventlog"))
	if err != nil {
		return fmt.Errorf("loading event log: %w", err)
	}
	if err := service.Restore(events.Since(0, 0), tokens, ex); err != nil {
		return fmt.Errorf("restoring state: %w", err)
	}
	if last := events.LastSeq(); last > 0 {
		log.Info("state restored from journal", zap.Uint64("last_seq", last), zap.Uint64("next_order_id", ex.OrderID()))
	}

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	var relayDone <-chan struct{}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := eventlog.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := writer.Close(); err != nil {
				log.Error("closing kafka writer", zap.Error(err))
			}
		}()
		relayDone = eventlog.NewRelay(relayCursor, journal, writer, cfg.Kafka.RelayInterval, log.Named("relay")).Start(relayCtx)
		log.Info("relaying events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	// Services (webhooks first, the publisher dispatches to them).
	webhookSvc := service.NewWebhookService(webhooks, cfg.WebhookTimeout, log.Named("webhook"))
	publisher := service.NewPublisher(events, webhookSvc, log.Named("publisher"))

	router := handler.NewRouter(handler.Services{
		Tokens:   service.NewTokenService(tokens, ex.Address(), publisher, nil),
		Exchange: service.NewExchangeService(ex, publisher, nil, log.Named("exchange")),
		Markets:  service.NewMarketService(ex, nil),
		Webhooks: webhookSvc,
		Events:   events,
	}, log.Named("http"))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Timeouts.Read,
		WriteTimeout: cfg.Timeouts.Write,
		IdleTimeout:  cfg.Timeouts.Idle,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", addr),
			zap.Stringer("exchange", ex.Address()),
			zap.Stringer("fee_account", ex.FeeAccount()),
			zap.Int64("fee_percent", ex.FeePercent()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// Graceful shutdown: stop HTTP first, then the relay.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	stopRelay()
	if relayDone != nil {
		<-relayDone
	}

	log.Info("server stopped")
	return nil
}
