package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"plantdoc/internal/bootstrap"
	"plantdoc/internal/history"
)

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and maintain the analysis history",
	}
	cmd.AddCommand(
		c.historyListCmd(),
		c.historyShowCmd(),
		c.historyDeleteCmd(),
		c.historyFavoriteCmd(),
		c.historyStatsCmd(),
		c.historyClearCmd(),
		c.historyImportCmd(),
	)
	return cmd
}

// withHistory runs fn against a freshly built app.
func (c *cli) withHistory(ctx context.Context, fn func(*bootstrap.App) error) error {
	app, err := c.app(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func (c *cli) historyListCmd() *cobra.Command {
	var (
		healthy   bool
		favorites bool
		term      string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := history.Filter{Term: term, FavoritesOnly: favorites}
			if cmd.Flags().Changed("healthy") {
				f.Healthy = &healthy
			}
			return c.withHistory(cmd.Context(), func(app *bootstrap.App) error {
				var (
					items []history.HistoryItem
					err   error
				)
				if limit > 0 && f == (history.Filter{}) {
					items, err = app.HistoryService.Recent(cmd.Context(), limit)
				} else {
					items, err = app.HistoryService.Query(cmd.Context(), f)
					if err == nil && limit > 0 && len(items) > limit {
						items = items[:limit]
					}
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"items": items, "count": len(items)})
			})
		},
	}
	cmd.Flags().BoolVar(&healthy, "healthy", false, "only healthy (true) or unhealthy (false) analyses")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "only favorites")
	cmd.Flags().StringVarP(&term, "query", "q", "", "filter by plant name")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of items")
	return cmd
}

func (c *cli) historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one saved analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withHistory(ctx, func(app *bootstrap.App) error {
				item, err := lookupItem(ctx, app, args[0])
				if err != nil {
					return err
				}
				fav, err := app.HistoryService.IsFavorite(ctx, item.ID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"item": item, "favorite": fav})
			})
		},
	}
}

func (c *cli) historyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved analysis and its favorite mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withHistory(ctx, func(app *bootstrap.App) error {
				if _, err := lookupItem(ctx, app, args[0]); err != nil {
					return err
				}
				deleted, err := app.HistoryService.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": args[0], "deleted": deleted})
			})
		},
	}
}

func (c *cli) historyFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle the favorite mark of a saved analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withHistory(ctx, func(app *bootstrap.App) error {
				if _, err := lookupItem(ctx, app, args[0]); err != nil {
					return err
				}
				fav, err := app.HistoryService.ToggleFavorite(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": args[0], "favorite": fav})
			})
		},
	}
}

func (c *cli) historyStatsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print history statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return c.withHistory(ctx, func(app *bootstrap.App) error {
				stats, err := app.HistoryService.Stats(ctx)
				if err != nil {
					return err
				}
				recent, err := app.HistoryService.CountSince(ctx, days)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"stats":      stats,
					"days":       days,
					"countSince": recent,
				})
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "window for the recent analysis count")
	return cmd
}

func (c *cli) historyClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every saved analysis and favorite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear history without --yes")
			}
			ctx := cmd.Context()
			return c.withHistory(ctx, func(app *bootstrap.App) error {
				if err := app.HistoryService.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing the history")
	return cmd
}

func (c *cli) historyImportCmd() *cobra.Command {
	var historyPath, favoritesPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a history export from the mobile app",
		Long: `Import a history export made by the mobile app: a JSON array of history
items and, optionally, a JSON array of favorite ids. Items whose id is
already present are skipped.

Example:
  plantdoc history import --history plant_analysis_history.json --favorites favorite_analyses.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			historyJSON, err := os.ReadFile(historyPath)
			if err != nil {
				return fmt.Errorf("read history export: %w", err)
			}
			var favoritesJSON []byte
			if favoritesPath != "" {
				if favoritesJSON, err = os.ReadFile(favoritesPath); err != nil {
					return fmt.Errorf("read favorites export: %w", err)
				}
			}
			ctx := cmd.Context()
			return c.withHistory(ctx, func(app *bootstrap.App) error {
				n, err := app.HistoryService.ImportLegacy(ctx, historyJSON, favoritesJSON)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"imported": n})
			})
		},
	}
	cmd.Flags().StringVar(&historyPath, "history", "", "path to the exported history JSON")
	cmd.Flags().StringVar(&favoritesPath, "favorites", "", "path to the exported favorites JSON")
	_ = cmd.MarkFlagRequired("history")
	return cmd
}

func lookupItem(ctx context.Context, app *bootstrap.App, id string) (history.HistoryItem, error) {
	item, err := app.HistoryService.Get(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		return history.HistoryItem{}, fmt.Errorf("history item %s not found", id)
	}
	return item, err
}
