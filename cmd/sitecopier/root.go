package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecopier/internal/app"
	"github.com/JakeFAU/sitecopier/internal/config"
	"github.com/JakeFAU/sitecopier/internal/logging"
)

// sessionKeyType is the key for storing the session in the command context.
type sessionKeyType string

const sessionKey sessionKeyType = "session"

// session is what PersistentPreRunE prepares for every subcommand.
type session struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "sitecopier",
		Short: "Inventory a website, inspect its calls to action and pixels, and package it as a ZIP.",
		Long: `sitecopier crawls one origin into an inventory of pages and assets, reports the
buttons and tracking pixels found on a page, and downloads the inventory into a ZIP
archive with button and pixel replacements applied to its HTML pages.`,
		SilenceUsage: true,

		// Config and logger are built once here and shared by every subcommand.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), sessionKey, &session{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := resolveSession(cmd.Context()); err == nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env SITECOPIER_* overrides apply)")

	cmd.AddCommand(
		newServeCmd(),
		newScanCmd(),
		newAnalyzeCmd(),
		newArchiveCmd(),
	)
	return cmd
}

func resolveSession(ctx context.Context) (*session, error) {
	rt, ok := ctx.Value(sessionKey).(*session)
	if !ok || rt == nil {
		return nil, errors.New("session not initialized")
	}
	return rt, nil
}

// withApp builds the services for one command run and closes them afterwards.
func withApp(cmd *cobra.Command, fn func(rt *session, a *app.App) error) error {
	rt, err := resolveSession(cmd.Context())
	if err != nil {
		return err
	}
	a, err := app.New(rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			rt.logger.Warn("Failed to close services", zap.Error(cerr))
		}
	}()
	return fn(rt, a)
}
