package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecopier/internal/app"
	"github.com/JakeFAU/sitecopier/internal/crawler"
)

func newScanCmd() *cobra.Command {
	var (
		maxDepth int
		maxPages int
		render   bool
		output   string
	)
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Crawl one origin and print the inventory summary",
		Long: `Walks same-origin links from the seed URL, probes every referenced asset, and prints
the scan summary as JSON. With --output the inventory itself is written as JSON or
YAML (chosen by extension) for a later archive run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(rt *session, a *app.App) error {
				opts := crawler.Options{
					MaxDepth:         valueOr(maxDepth, rt.cfg.Crawler.MaxDepthDefault),
					MaxPages:         valueOr(maxPages, rt.cfg.Crawler.MaxPagesDefault),
					UseRenderedFetch: render && rt.cfg.Headless.Enabled,
				}
				inv, stats, err := a.Crawler.ScanWithStats(cmd.Context(), args[0], opts)
				if err != nil {
					if inv == nil || !errors.Is(err, context.Canceled) {
						return fmt.Errorf("scan: %w", err)
					}
					rt.logger.Warn("scan interrupted, writing partial inventory", zap.Int("files", inv.Len()))
				}
				rt.logger.Info("scan complete",
					zap.Int("pages_visited", stats.PagesVisited),
					zap.Int("pages_failed", stats.PagesFailed),
					zap.Int("assets_probed", stats.AssetsProbed),
					zap.Int("probe_failures", stats.ProbeFailures))
				if output != "" {
					if err := writeInventory(output, inv); err != nil {
						return err
					}
				}
				return printJSON(cmd.OutOrStdout(), inv.Summary(args[0]))
			})
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum link depth from the seed (default crawler.max_depth_default)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages visited (default crawler.max_pages_default)")
	cmd.Flags().BoolVar(&render, "render", true, "render the seed page in headless Chrome when headless.enabled")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the inventory to this .json or .yaml file")
	return cmd
}

func valueOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
