package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/cardeck/internal/deck"
	"github.com/tinytelemetry/cardeck/internal/duckdb"
	"github.com/tinytelemetry/cardeck/internal/httpserver"
	"github.com/tinytelemetry/cardeck/internal/model"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve card decks over a JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.APIAddr = addr
			}
			return runServer(c.cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides api-addr)")
	return cmd
}

// runServer starts the deck API and blocks until SIGINT or SIGTERM.
func runServer(cfg appConfig) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.level}))
	slog.SetDefault(logger)

	store, err := openVerdictStore(cfg)
	if err != nil {
		return err
	}
	var reader model.VerdictReader
	var recorder model.VerdictWriter
	var retentionCleaner *duckdb.RetentionCleaner
	if store != nil {
		defer store.Close()
		reader, recorder = store, store
		retentionCleaner = duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
			RetentionDays: cfg.VerdictRetentionDays,
			Logger:        logger,
		})
	}

	client := newCharacterClient(cfg, logger)
	sessions := httpserver.NewRegistry(func() *deck.Controller {
		return newController(client, cfg, recorder, logger)
	}, httpserver.RegistryConfig{
		TTL:     cfg.SessionTTL,
		Gesture: cfg.gestureConfig(),
		Logger:  logger,
	})

	apiServer := httpserver.NewServer(sessions, httpserver.Options{
		Addr:     cfg.APIAddr,
		DrawSize: cfg.DrawSize,
		Verdicts: reader,
		Logger:   logger,
	})
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer func() {
		if err := apiServer.Stop(); err != nil {
			logger.Warn("api shutdown", "error", err)
		}
	}()

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nForce shutdown.")
		case <-deadline.C:
			fmt.Fprintln(os.Stderr, "Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(cfg, apiServer.Addr(), store != nil)

	err = runBackground(ctx, apiServer, sessions, retentionCleaner)
	signal.Stop(sigCh)
	if err != nil {
		logger.Error("server: errgroup exited with error", "error", err)
		return err
	}
	return nil
}

// runBackground blocks until ctx is done or the API server fails, running
// the session reaper and verdict retention alongside it.
func runBackground(ctx context.Context, api *httpserver.Server, sessions *httpserver.Registry, cleaner *duckdb.RetentionCleaner) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-api.Err():
			return fmt.Errorf("http api: %w", err)
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		sessions.RunReaper(gctx)
		return nil
	})
	if cleaner != nil {
		g.Go(func() error { return cleaner.Run(gctx) })
	}
	return g.Wait()
}

func printStartupBanner(cfg appConfig, addr string, verdicts bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╔═╗╦═╗╔╦╗╔═╗╔═╗╦╔═
    ║  ╠═╣╠╦╝ ║║║╣ ║  ╠╩╗
    ╚═╝╩ ╩╩╚══╩╝╚═╝╚═╝╩ ╩`)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Gateway"), "")
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render("http://"+addr+"/api")))
	lines = append(lines, fmt.Sprintf("    %s  Characters     %s", check, dim.Render(cfg.BaseURL)))
	if cfg.CatalogCacheTTL > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Catalog Cache  %s", check, dim.Render(cfg.CatalogCacheTTL.String())))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Catalog Cache  %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	if verdicts {
		lines = append(lines, fmt.Sprintf("    %s  Verdicts       %s", check, dim.Render(shortenPath(cfg.DBPath))))
		retention := "keep forever"
		if cfg.VerdictRetentionDays > 0 {
			retention = fmt.Sprintf("%d days", cfg.VerdictRetentionDays)
		}
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", check, dim.Render(retention)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Verdicts       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Fprintln(os.Stderr, strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
