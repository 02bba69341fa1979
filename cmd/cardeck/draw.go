package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tinytelemetry/cardeck/internal/deck"
	"github.com/tinytelemetry/cardeck/internal/model"
)

func newDrawCmd(c *cli) *cobra.Command {
	var n int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Print random characters and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n < 1 || n > model.MaxDrawSize {
				return fmt.Errorf("invalid count %d: %w", n, deck.ErrInvalidDrawSize)
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: c.cfg.level}))
			return runDraw(cmd.Context(), c.cfg, n, asJSON, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", model.DefaultDrawSize, "number of characters to draw")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the records as JSON")
	return cmd
}

func runDraw(ctx context.Context, cfg appConfig, n int, asJSON bool, out io.Writer, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}

	src := deck.NewSource(newCharacterClient(cfg, logger), deck.DefaultRNG())
	records, err := src.FetchRandomCharacters(ctx, n)
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	name := lipgloss.NewStyle().Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	for i, r := range records {
		fmt.Fprintf(out, "%2d. %s %s\n", i+1, name.Render(r.Name),
			dim.Render(fmt.Sprintf("(%d films, %d tv shows)", len(r.Films), len(r.TVShows))))
	}
	return nil
}
