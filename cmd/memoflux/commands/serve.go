package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MemoFlux/MemoFluxServer/cmd/memoflux/internal/config"
	"github.com/MemoFlux/MemoFluxServer/pkg/auth"
	"github.com/MemoFlux/MemoFluxServer/pkg/jobs"
	"github.com/MemoFlux/MemoFluxServer/pkg/server"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server.

Routes:
  POST   /aigen                  blocking extraction of all three views
  POST   /aigen_streaming        server-sent events, one envelope per frame
  GET    /aigen_ws               the same envelopes over a WebSocket
  POST   /aigen/jobs             submit a background extraction
  GET    /aigen/jobs/{voucher}   poll a background extraction
  DELETE /aigen/jobs/{voucher}   discard a finished extraction
  POST   /auth/register|login    user accounts and bearer tokens
  GET    /metrics, /healthz`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	reg := newRegistry()
	svc, err := newService(cfg, reg)
	if err != nil {
		return err
	}

	store, badgerDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if badgerDB != nil {
		go badgerDB.RunGC(ctx, 5*time.Minute)
	}

	authSvc := auth.New(store, auth.Config{TokenTTL: cfg.Auth.TokenTTL, Logger: logger})
	go authSvc.Run(ctx, cfg.Auth.CleanupInterval)

	jobsCfg := cfg.Jobs
	jobsCfg.Logger = logger
	jm := jobs.New(svc, store, jobsCfg)
	defer jm.Close()

	srv, err := server.New(server.Config{
		Listen:       cfg.Listen,
		AuthRequired: cfg.Auth.Required,
	}, server.Deps{
		Service:  svc,
		Auth:     authSvc,
		Enricher: enricherOrNil(ctx, cfg),
		Objects:  newObjects(cfg),
		Jobs:     jm,
		Gatherer: reg,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	logger.Info("memoflux starting", "config", cfg.Path, "store", cfg.Store, "auth_required", cfg.Auth.Required)
	return srv.Run(ctx)
}

// enricherOrNil keeps a nil *enrich.Enricher from becoming a non-nil
// interface.
func enricherOrNil(ctx context.Context, cfg *config.Config) server.Enricher {
	if e := newEnricher(ctx, cfg); e != nil {
		return e
	}
	return nil
}
