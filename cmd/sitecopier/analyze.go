package main

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/sitecopier/internal/app"
)

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <url>",
		Short: "Print the buttons and tracking pixels found on one page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ *session, a *app.App) error {
				analysis, err := a.Analyzer.Analyze(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), analysis)
			})
		},
	}
}
