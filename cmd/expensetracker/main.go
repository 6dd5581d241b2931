package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/goliatone/go-expense-tracker/app"
	"github.com/goliatone/go-expense-tracker/config"
	"github.com/goliatone/go-expense-tracker/logging"
)

func main() {
	configFile := flag.String("config", "", "path to a config or .env file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	lgr := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat, "app")

	ctx := context.Background()

	srv, err := app.New(ctx, cfg, lgr)
	if err != nil {
		lgr.Error("failed to initialize app", "error", err)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			lgr.Error("http server stopped", "error", err)
			_ = srv.Shutdown(ctx)
			return err
		}
	case sig := <-waitExitSignal():
		lgr.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("shutdown failed", "error", err)
		return err
	}

	lgr.Info("bye")
	return nil
}

func waitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	go func() {
		ch <- app.WaitExitSignal()
	}()
	return ch
}
