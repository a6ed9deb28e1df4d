package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/bsengine/internal/config"
	"github.com/yourusername/bsengine/pkg/api"
	"github.com/yourusername/bsengine/pkg/external"
	"github.com/yourusername/bsengine/pkg/game"
	"github.com/yourusername/bsengine/pkg/store"
)

type serveOptions struct {
	host       string
	port       int
	noExternal bool
	noStore    bool
	storePath  string
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the line protocol server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = opts.host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = opts.port
			}
			if opts.noExternal {
				cfg.External.Enabled = false
			}
			if opts.noStore {
				cfg.Store.Enabled = false
			}
			if opts.storePath != "" {
				cfg.Store.Enabled = true
				cfg.Store.Path = opts.storePath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, a.logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.host, "host", "localhost", "host to bind the HTTP API to (0.0.0.0 for all interfaces)")
	flags.IntVarP(&opts.port, "port", "p", 8080, "HTTP API port")
	flags.BoolVar(&opts.noExternal, "no-external", false, "disable the line protocol server")
	flags.BoolVar(&opts.noStore, "no-store", false, "keep sessions in memory only")
	flags.StringVar(&opts.storePath, "store", "", "directory for persisted sessions")
	return cmd
}

// serve runs the configured servers until ctx is cancelled or one fails.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var st store.Store
	if cfg.Store.Enabled {
		scfg := store.DefaultConfig()
		scfg.Path = cfg.Store.Path
		scfg.InMemory = cfg.Store.InMemory
		scfg.SyncWrites = cfg.Store.SyncWrites
		scfg.GCInterval = cfg.Store.GCInterval
		scfg.Logger = logger.With(slog.String("component", "store"))

		bs, err := store.Open(scfg)
		if err != nil {
			return err
		}
		defer bs.Close()
		st = bs
		logger.Info("session store opened", slog.String("path", cfg.Store.Path), slog.Bool("in_memory", cfg.Store.InMemory))
	}

	manager := game.NewManager(st, logger.With(slog.String("component", "game")))
	defer manager.Close()

	srv, err := api.NewServer(manager, api.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxFastWorkers: cfg.Pool.MaxFastWorkers,
		MaxSlowWorkers: cfg.Pool.MaxSlowWorkers,
		DefaultGame:    cfg.Game,
	}, version, logger.With(slog.String("component", "api")))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	if cfg.External.Enabled {
		ext := external.NewServer(manager, external.ServerOptions{
			Host:          cfg.External.Host,
			Port:          cfg.External.Port,
			PromptEnabled: true,
			Game:          cfg.Game,
		}, logger.With(slog.String("component", "external")))
		g.Go(func() error {
			return ext.Serve(ctx)
		})
	}
	return g.Wait()
}
