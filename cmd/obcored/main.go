// Command obcored runs the matching engine and its TCP intake server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lattice-markets/obcore/internal/config"
	"github.com/lattice-markets/obcore/internal/engine"
	"github.com/lattice-markets/obcore/internal/metrics"
	obnet "github.com/lattice-markets/obcore/internal/net"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		host        string
		port        int
		metricsPort int
		queueCap    int
	)

	cmd := &cobra.Command{
		Use:   "obcored",
		Short: "obcored runs the single-instrument limit order book matching engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Server{Host: host, Port: port, MetricsPort: metricsPort}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, queueCap)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "address to bind the TCP intake listener")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "TCP port for the intake listener")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", config.DefaultMetricsPort, "HTTP port for the Prometheus scrape endpoint")
	cmd.Flags().IntVar(&queueCap, "queue-capacity", 1024, "intake queue capacity, rounded up to a power of two")

	return cmd
}

func run(ctx context.Context, cfg config.Server, queueCap int) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(queueCap)
	srv := obnet.New(cfg.Host, cfg.Port, eng)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddress(), Handler: mux}
	collector := metrics.GetCollector()

	serverErrs := make(chan error, 1)
	go func() { serverErrs <- srv.Run(ctx) }()

	go func() {
		log.Info().Str("address", cfg.MetricsAddress()).Msg("obcored: metrics endpoint listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("obcored: metrics listener failed")
		}
	}()

	go pollMetrics(ctx, srv, eng, collector)

	select {
	case <-ctx.Done():
		log.Info().Msg("obcored: shutdown signal received")
	case err := <-serverErrs:
		if err != nil {
			log.Error().Err(err).Msg("obcored: server exited with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.Shutdown()
	_ = metricsSrv.Shutdown(shutdownCtx)
	eng.Stop()

	return nil
}

func pollMetrics(ctx context.Context, srv *obnet.Server, eng *engine.Engine, collector *metrics.Collector) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, accepted, currentOps, peakOps, uptime := eng.Stats()
			collector.Observe(srv.TotalRequests(), processed, accepted, currentOps, peakOps, eng.QueueDepth(), uptime.Seconds())
		}
	}
}
