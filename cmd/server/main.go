package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	janus "github.com/janus-web/janus-db"
	"github.com/janus-web/janus-db/apiServer"
	"github.com/janus-web/janus-db/internal/config"
	"github.com/janus-web/janus-db/pkg/logging"
	"github.com/janus-web/janus-db/pkg/permission"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(logLevel(conf.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf config.Config, logger *slog.Logger) error {
	roles := permission.NewMemoryRoleStore()
	for subject, subjectRoles := range conf.Roles {
		for _, role := range subjectRoles {
			roles.Grant(role, subject)
		}
	}

	engine, err := janus.New(janus.Config{
		Paths:         []string{conf.DataDir},
		MinimumFreeGB: conf.MinimumFreeGB,
		Logger:        logger,
		Secret:        conf.Secret,
		ChunkMode:     conf.ChunkMode,
		ChunkSize:     conf.ChunkSize,
		PricePerKiB:   conf.PricePerKiB,
		Roles:         roles,
	})
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.CloseWithoutContext()

	handler := apiServer.New(engine,
		apiServer.WithLogger(logger),
		apiServer.WithAuth(apiServer.TokenAuth(conf.Tokens)),
	)

	server := &http.Server{
		Addr:              conf.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", conf.Listen, "dataDir", conf.DataDir)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
