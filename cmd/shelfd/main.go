// Command shelfd runs the shelf daemon in the foreground without the CLI
// wrapper. It is the entrypoint used by service managers; interactive use
// goes through `shelf start`.
package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"shelf/internal/config"
	"shelf/internal/daemon"
	"shelf/internal/ipc"
	"shelf/internal/logging"
	"shelf/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "shelf.log")
	d, err := daemon.Bootstrap(cfg, st, logger, logPath)
	if err != nil {
		_ = st.Close()
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	<-ctx.Done()
	logger.Info("shelfd shutting down")
}
