package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/danielterwiel/stepvis/catalog"
	"github.com/danielterwiel/stepvis/config"
	"github.com/danielterwiel/stepvis/executor"
	"github.com/danielterwiel/stepvis/logger"
	"github.com/danielterwiel/stepvis/sandbox"
	"github.com/danielterwiel/stepvis/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that executes submissions and serves the exercise
catalog.

Endpoints:
  POST /api/execute              Execute source (stateless)
  GET  /api/execute/ws           Execute with live step streaming (WebSocket)
  GET  /api/exercises            List catalog exercises
  GET  /api/exercises/{id}       Fetch one exercise
  POST /api/exercises/{id}/run   Run a submission against the exercise tests
  GET  /healthz                  Health check
  GET  /metrics                  Prometheus metrics

Configuration comes from config.yaml (or --config), overridable through
STEPVIS_* environment variables. The --port flag wins over both.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Config file path (default: ./config.yaml)")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfgPath, _ := cmd.Flags().GetString("config")
	port, _ := cmd.Flags().GetInt("port")
	noCache, _ := cmd.Root().PersistentFlags().GetBool("no-cache")

	app := fx.New(
		fx.Provide(
			func() (*config.Config, error) {
				cfg, err := config.NewFromFile(cfgPath)
				if err != nil {
					return nil, err
				}
				if port > 0 {
					cfg.Server.Port = port
				}
				if noCache {
					cfg.Engine.DiskCache = false
				}
				return cfg, nil
			},
			logger.NewFromConfig,
			newServeEngine,
			newServeRunner,
			newServeCatalog,
			server.New,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

func newServeEngine(lc fx.Lifecycle, cfg *config.Config) (*sandbox.Engine, error) {
	var opts []sandbox.Option
	if cfg.Engine.DiskCache {
		opts = append(opts, sandbox.WithDiskCache(cfg.Engine.CacheDir))
	}
	if pages := cfg.Engine.MemoryPages(); pages > 0 {
		opts = append(opts, sandbox.WithMemoryLimit(pages))
	}
	if cfg.Engine.Precompile {
		opts = append(opts, sandbox.WithPrecompile())
	}

	engine, err := sandbox.NewEngine(opts...)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return engine.Close() },
	})
	return engine, nil
}

func newServeRunner(engine *sandbox.Engine, cfg *config.Config, log *zap.Logger) (*executor.Executor, error) {
	return executor.New(
		executor.NewEngineHost(engine),
		executor.WithGuardDefaults(cfg.Guard),
		executor.WithLogger(log.Named("executor")),
	)
}

// newServeCatalog loads the exercise directory. A missing or broken catalog
// downgrades to an empty registry: the execute endpoints stay useful even
// when no exercises ship alongside the binary.
func newServeCatalog(cfg *config.Config, log *zap.Logger) *catalog.Registry {
	reg := catalog.NewRegistry()
	n, err := reg.LoadDir(cfg.Catalog.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("exercise directory missing, catalog is empty",
				zap.String("dir", cfg.Catalog.Dir))
		} else {
			log.Warn("loading exercises failed",
				zap.String("dir", cfg.Catalog.Dir), zap.Error(err))
		}
		return reg
	}
	log.Info("exercises loaded", zap.Int("count", n), zap.String("dir", cfg.Catalog.Dir))
	return reg
}

func startServer(lc fx.Lifecycle, srv *server.Server, cfg *config.Config, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
