package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/cardeck/internal/deck"
	"github.com/tinytelemetry/cardeck/internal/duckdb"
	"github.com/tinytelemetry/cardeck/internal/model"
)

// cli carries state shared by the subcommands.
type cli struct {
	configPath string
	cfg        appConfig
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "cardeck",
		Short:         "Swipeable Disney character cards",
		Long:          "cardeck deals random Disney characters as a stack of cards you swipe right to like and left to pass.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default is $HOME/.config/cardeck/config.yml)")

	root.AddCommand(
		newPlayCmd(c),
		newServeCmd(c),
		newDrawCmd(c),
		newVersionCmd(),
	)
	return root
}

// newController builds one deck over the shared catalog client.
func newController(svc model.CharacterService, cfg appConfig, recorder model.VerdictWriter, logger *slog.Logger) *deck.Controller {
	opts := []deck.Option{deck.WithLogger(logger)}
	if recorder != nil {
		opts = append(opts, deck.WithRecorder(recorder))
	}
	return deck.New(deck.NewSource(svc, deck.DefaultRNG()), cfg.deckConfig(), opts...)
}

// openVerdictStore opens the verdict log when enabled. It returns nil and no
// error when verdict recording is switched off.
func openVerdictStore(cfg appConfig) (*duckdb.Store, error) {
	if !cfg.VerdictsEnabled {
		return nil, nil
	}
	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	return store, nil
}
