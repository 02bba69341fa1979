package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tinytelemetry/cardeck/internal/deck"
	"github.com/tinytelemetry/cardeck/internal/model"
	"github.com/tinytelemetry/cardeck/internal/tui"
)

func newPlayCmd(c *cli) *cobra.Command {
	var drawSize int
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Swipe through cards in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("size") {
				if drawSize < 1 || drawSize > model.MaxDrawSize {
					return fmt.Errorf("invalid size %d: %w", drawSize, deck.ErrInvalidDrawSize)
				}
				c.cfg.DrawSize = drawSize
			}
			return runPlay(cmd.Context(), c.cfg)
		},
	}
	cmd.Flags().IntVarP(&drawSize, "size", "n", model.DefaultDrawSize, "number of cards to deal")
	return cmd
}

func runPlay(ctx context.Context, cfg appConfig) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("TUI requires a real terminal")
	}

	logger, cleanupLogger := configureRuntimeLogger(cfg.level)
	defer cleanupLogger()

	home, _ := os.UserHomeDir()
	configDir := filepath.Join(home, ".config", "cardeck")
	if err := tui.InitializeSkin(cfg.Skin, configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load skin '%s': %v (using default)\n", cfg.Skin, err)
	}

	// The TUI still works without history, e.g. while `cardeck serve` holds
	// the database.
	var reader model.VerdictReader
	var recorder model.VerdictWriter
	store, err := openVerdictStore(cfg)
	if err != nil {
		logger.Warn("verdict history unavailable", "error", err)
		fmt.Fprintf(os.Stderr, "Warning: verdict history unavailable: %v\n", err)
	} else if store != nil {
		defer store.Close()
		reader, recorder = store, store
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := newCharacterClient(cfg, logger)
	ctrl := newController(client, cfg, recorder, logger)
	defer ctrl.Close()

	deckPage := tui.NewDeckPage(ctx, ctrl, tui.DeckPageConfig{
		DrawSize: cfg.DrawSize,
		ScaleX:   cfg.PointerScaleX,
		ScaleY:   cfg.PointerScaleY,
		Gesture:  cfg.gestureConfig(),
	})
	statsPage := tui.NewStatsPage(ctx, reader)
	app := tui.NewApp(deckPage, statsPage)

	logger.Info("starting tui", "draw_size", cfg.DrawSize, "base_url", cfg.BaseURL)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// configureRuntimeLogger sends logs to ~/.local/state/cardeck/cardeck.log so
// they do not corrupt the TUI. Falls back to discarding them.
func configureRuntimeLogger(level slog.Level) (*slog.Logger, func()) {
	discard := func() (*slog.Logger, func()) {
		l := slog.New(slog.NewTextHandler(io.Discard, nil))
		slog.SetDefault(l)
		return l, func() {}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return discard()
	}

	logDir := filepath.Join(home, ".local", "state", "cardeck")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return discard()
	}

	logPath := filepath.Join(logDir, "cardeck.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return discard()
	}

	l := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	return l, func() {
		_ = f.Close()
	}
}
