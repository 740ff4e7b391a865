// Package cmd wires spotbookd's cobra command tree: a single "serve"
// command (also the root's default run) that brings up the matching
// engine, its snapshot and expiry timers, and its metrics server, then
// blocks until asked to shut down.
package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"spotbook/config"
	"spotbook/engine"
	"spotbook/events"
	"spotbook/metrics"
	"spotbook/snapshot"
	"spotbook/transport"
)

var configPath string

// NewRootCmd builds the spotbookd command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "spotbookd",
		Short: "spotbookd runs the spot limit-order-book matching engine",
		RunE:  runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the matching engine and its ancillary services",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(logLevel(cfg.Logging.Level)).
		With().Timestamp().Logger()

	bus := events.NewBus()
	defer bus.Shutdown()

	bus.Register(metrics.NewBackend())

	if cfg.NATS.Enabled {
		backend, err := transport.NewNatsBackend(transport.NatsBackendConfig{
			URL:         cfg.NATS.URL,
			SubjectRoot: cfg.NATS.SubjectRoot,
		}, log.With().Str("component", "nats").Logger())
		if err != nil {
			log.Error().Err(err).Msg("nats backend disabled: connect failed")
		} else {
			bus.Register(backend)
		}
	}

	eng := engine.New(bus, cfg.Dust)

	snapMgr := snapshot.NewManager(cfg.SnapshotPath)
	if err := snapMgr.Load(eng); err != nil {
		log.Error().Err(err).Msg("snapshot load failed, starting empty")
	}
	// Restore bypasses the event bus, so seed the gauges the metrics
	// backend would otherwise only learn about from live traffic.
	metrics.GetCollector().SetPairsLive(float64(eng.PairCount()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopSnapshot := make(chan struct{})
	go func() {
		snapshot.Tick(snapMgr, eng, cfg.SnapshotInterval(), nowMillis, stopSnapshot)
	}()

	stopExpiry := make(chan struct{})
	go runExpiryCron(eng, cfg.ExpirySweepInterval, stopExpiry, log)

	metricsSrv := &http.Server{Addr: portAddr(cfg.MetricsPort), Handler: metrics.NewServer()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	log.Info().
		Int("event_port", cfg.EventPort).
		Int("order_port", cfg.OrderPort).
		Int("metrics_port", cfg.MetricsPort).
		Msg("spotbookd started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	close(stopSnapshot)
	close(stopExpiry)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err := snapMgr.Save(eng, nowMillis()); err != nil {
		log.Error().Err(err).Msg("final snapshot save failed")
	}

	return nil
}

func runExpiryCron(eng *engine.MatchingEngine, interval time.Duration, stop <-chan struct{}, log zerolog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := nowMillis()
			for _, pairID := range eng.PairIDs() {
				if _, err := eng.ExpireOrders(pairID, "spotbookd", now); err != nil {
					log.Error().Err(err).Str("pair_id", string(pairID)).Msg("expiry sweep failed")
				}
			}
		}
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

func logLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
