package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/namikmesic/streamgate/internal/bus"
	"github.com/namikmesic/streamgate/internal/config"
	"github.com/namikmesic/streamgate/internal/metrics"
	"github.com/namikmesic/streamgate/internal/processor"
	"github.com/namikmesic/streamgate/internal/proxy"
	nats "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var port int
	var upstream string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Long: `Run the gateway.

Configuration is read from the environment (PORT, UPSTREAM_URL,
UPSTREAM_API_KEY, NATS_ENABLED, ...). Flags override it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("upstream") {
				cfg.UpstreamURL = upstream
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.LogLevel = lvl
			}
			setupLogging(cfg.LogLevel)
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8090, "Port to listen on")
	cmd.Flags().StringVarP(&upstream, "upstream", "u", "", "Upstream base URL")
	return cmd
}

func runServe(cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		natsServer *bus.Server
		nc         *nats.Conn
		demux      *bus.Demux
		proc       *processor.Processor
	)
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	if cfg.NATSEnabled {
		var err error
		natsServer, err = bus.NewServer()
		if err != nil {
			return fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		nc, err = natsServer.Connect()
		if err != nil {
			natsServer.Shutdown()
			return fmt.Errorf("failed to connect to embedded NATS: %w", err)
		}
		proc = processor.New(m)
		demux, err = proc.StartConsumer(consumerCtx, nc)
		if err != nil {
			nc.Close()
			natsServer.Shutdown()
			return fmt.Errorf("failed to subscribe to tap: %w", err)
		}
	}

	var tap bus.Publisher
	if nc != nil {
		tap = nc
	}
	handler, err := proxy.NewHandler(cfg, m, tap)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", handler)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("upstream", cfg.UpstreamURL).
			Bool("nats", cfg.NATSEnabled).
			Msg("streamgate started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-done:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if nc != nil {
		// Deliver pending tap messages before the consumer stops.
		if err := nc.Flush(); err != nil {
			log.Warn().Err(err).Msg("tap flush failed")
		}
		if err := demux.Close(); err != nil {
			log.Warn().Err(err).Msg("tap unsubscribe failed")
		}
		proc.Wait()
		consumerCancel()
		nc.Close()
		natsServer.Shutdown()
	}
	log.Info().Msg("shutdown complete")
	return nil
}
