// Command hubmirror serves the observability API for a model/dataset
// caching mirror: live request and system metrics plus an on-demand
// inventory of the cache directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"github.com/hubmirror/hubmirror/server"
)

var cli struct {
	Address        string        `help:"Address to listen on." default:":8090"`
	CacheRoot      string        `help:"Cache root directory to inventory." default:"./repos" type:"path"`
	RequestHistory int           `help:"Maximum request metrics kept in memory." default:"10000"`
	SystemHistory  int           `help:"Maximum system snapshots kept in memory." default:"1000"`
	SampleInterval time.Duration `help:"System sampling period." default:"5s"`
	DiskPath       string        `help:"Mount point sampled for disk usage." default:"/"`
	LogLevel       string        `help:"Log level." enum:"debug,info,warn,error" default:"info"`
	LogFormat      string        `help:"Log format." enum:"text,json" default:"text"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("hubmirror"),
		kong.Description("Observability server for a model/dataset caching mirror."),
	)

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	srv, err := server.New(server.Config{
		Address:            cli.Address,
		CacheRoot:          cli.CacheRoot,
		RequestHistorySize: cli.RequestHistory,
		SystemHistorySize:  cli.SystemHistory,
		SampleInterval:     cli.SampleInterval,
		DiskPath:           cli.DiskPath,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("server started",
		"address", srv.Address(),
		"metrics_url", fmt.Sprintf("http://localhost%s/metrics", srv.Address()),
		"overview_url", fmt.Sprintf("http://localhost%s/api/cache/overview", srv.Address()),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildLogger() (*slog.Logger, error) {
	var level slog.Level
	switch cli.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cli.LogLevel)
	}

	var handler slog.Handler
	switch cli.LogFormat {
	case "text":
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: level})
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("invalid log format: %s", cli.LogFormat)
	}

	return slog.New(handler), nil
}
