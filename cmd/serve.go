package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crmctl/internal/diagnostics"
	"github.com/desertthunder/crmctl/internal/server"
	"github.com/desertthunder/crmctl/internal/shared"
)

// Serve ensures the runtime directories exist, then serves probes and static files until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := int(cmd.Int("port")); port >= 0 {
		config.Server.Port = port
	}

	if err := shared.EnsureRuntimeDirs(config.Paths); err != nil {
		return err
	}
	for _, dir := range shared.RuntimeDirs(config.Paths) {
		r.logger.Debug("runtime directory ready", "path", dir)
	}

	flush := r.tracing(ctx, config)
	defer flush()

	db, err := r.dial(config)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		Config:    config.Server,
		StaticDir: filepath.Join(baseDir(config.Paths), config.Paths.StaticRoot),
		Prober:    diagnostics.NewInspector(db.DB(), db.Dialect(), r.logger),
		Logger:    r.logger,
	})
	r.logger.Info("starting server", "addr", srv.Addr())
	return srv.Run(ctx)
}

func baseDir(paths shared.PathsConfig) string {
	if paths.BaseDir == "" {
		return "."
	}
	return paths.BaseDir
}
