package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/castlemilk/pfinance/analytics/internal/modelcache"
	"github.com/spf13/cobra"
)

func evictCmd() *cobra.Command {
	var (
		userIDs    []string
		classifier bool
	)

	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Drop cached models so they are retrained on next use",
		Example: `  server evict --user 6612f0a8b1c2d3e4f5a6b7c8
  server evict --classifier`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(userIDs) == 0 && !classifier {
				return errors.New("nothing to evict: pass --user or --classifier")
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range userIDs {
				if err := a.svc.InvalidateForecast(ctx, id); err != nil {
					return fmt.Errorf("failed to evict forecast for %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "evicted forecast model for %s\n", id)
			}
			if classifier {
				if err := a.cache.Invalidate(ctx, modelcache.ClassifierKey); err != nil {
					return fmt.Errorf("failed to evict classifier: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "evicted classifier model")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&userIDs, "user", nil, "user whose forecast model to drop (repeatable)")
	cmd.Flags().BoolVar(&classifier, "classifier", false, "drop the shared classifier model")
	return cmd
}
