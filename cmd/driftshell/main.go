package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ErebusAres/DriftShell-sub000/internal/config"
	"github.com/ErebusAres/DriftShell-sub000/internal/engine"
	"github.com/ErebusAres/DriftShell-sub000/internal/narrator"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/store"
	"github.com/ErebusAres/DriftShell-sub000/internal/tui"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "driftshell: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, closeLog, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer closeLog()

	saves, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer saves.Close()

	w, err := world.Load()
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}

	relay := tui.NewRelay()
	voice, err := narrator.New(context.Background(), narrator.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, relay, log)
	if err != nil {
		return fmt.Errorf("start narrator: %w", err)
	}

	eng := engine.New(w, state.New(w, cfg.Handle), engine.Options{
		Logger:   log,
		Notifier: voice,
	})

	runErr := tui.Run(eng, saves, relay)

	// The narrator's Close must come after the engine stops emitting.
	eng.Close()
	voice.Close()
	return runErr
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.SaveBackend {
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath)
	default:
		return store.NewFileStore(cfg.SaveDir)
	}
}
