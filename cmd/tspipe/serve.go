package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tspipe/tspipe/internal/config"
	"github.com/tspipe/tspipe/internal/errs"
	"github.com/tspipe/tspipe/internal/httpapi"
	"github.com/tspipe/tspipe/internal/ingest"
	"github.com/tspipe/tspipe/internal/segstore"
	"github.com/tspipe/tspipe/internal/session"
	"github.com/tspipe/tspipe/internal/stats"
	"github.com/tspipe/tspipe/internal/stream"
	"github.com/tspipe/tspipe/transport/udp"
)

var (
	configPath string
	httpAddr   string
	ingestAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingest listener and LL-HLS HTTP surface.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	serveCmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config/env)")
	serveCmd.Flags().StringVar(&ingestAddr, "ingest-addr", "", "UDP ingest listen address (overrides config/env)")
}

// runServe loads configuration, wires the session manager, stream runners,
// ingest listener and HTTP surface together, and runs them as one
// errgroup.Group so any component's failure tears the rest down, grounded
// on zsiec-prism/cmd/prism/main.go's errgroup.WithContext wiring of its
// SRT/HTTPS/distribution servers.
func runServe(ctx context.Context) error {
	cfg := config.Default()
	if err := config.LoadFile(configPath, &cfg); err != nil {
		return err
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return err
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if ingestAddr != "" {
		cfg.IngestAddr = ingestAddr
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if rootCmd.PersistentFlags().Changed("log-json") {
		cfg.LogJSON = logJSON
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	initLogger(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sm, stopSessions := session.NewManager()
	defer stopSessions()

	reporter := stats.NewReporter(cfg.EnableMetrics, log.Logger)
	storeCfg := segstore.Config{
		WindowSize:     cfg.WindowSize,
		PartDuration:   cfg.PartDuration,
		LowLatencyMode: cfg.LowLatency,
		IsLive:         true,
	}
	streamMgr := stream.NewManager(sm, storeCfg, reporter, log.Logger)

	listener, err := udp.Listen(cfg.IngestAddr)
	if err != nil {
		return fmt.Errorf("serve: ingest listen: %w", err)
	}

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewServer(streamMgr, log.Logger).Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reporter.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return acceptLoop(ctx, listener, sm)
	})

	g.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("serve: HTTP surface listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	log.Info().Str("ingest_addr", cfg.IngestAddr).Msg("serve: ingest listener ready")
	return g.Wait()
}

// acceptLoop accepts ingest connections until ctx is canceled, running each
// one's Adapter in its own goroutine.
func acceptLoop(ctx context.Context, listener *udp.Listener, sm *session.Manager) error {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer errs.Recover(log.Logger, "ingest.Adapter")
			a := ingest.NewAdapter(conn, sm, log.Logger)
			_ = a.Run(ctx)
		}()
	}
}
