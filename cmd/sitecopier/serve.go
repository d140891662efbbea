package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/sitecopier/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until SIGINT or SIGTERM",
		Long: `Serves the scan, analyze, replace, and download endpoints. The listen port comes from
server.port, or from PORT when the platform sets it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			cfg := rt.cfg
			if port := os.Getenv("PORT"); port != "" {
				p, err := strconv.Atoi(port)
				if err != nil {
					return fmt.Errorf("invalid PORT %q: %w", port, err)
				}
				cfg.Server.Port = p
			}
			srv, err := server.Build(cmd.Context(), cfg, rt.logger)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}
