package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecopier/internal/app"
	"github.com/JakeFAU/sitecopier/internal/archive"
	"github.com/JakeFAU/sitecopier/internal/site"
)

func newArchiveCmd() *cobra.Command {
	var (
		inventoryPath    string
		replacementsPath string
		output           string
	)
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Download an inventory into a ZIP, applying replacements to HTML pages",
		Long: `Reads an inventory written by "scan --output" (or the files array of a scan summary),
optionally applies a replacements file of button and pixel edits, and writes the ZIP.
The default output name is <host>-files.zip, or <host>-wordpress-ready.zip when
replacements are given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv, err := readInventory(inventoryPath)
			if err != nil {
				return err
			}
			var repl replacementsFile
			if replacementsPath != "" {
				if repl, err = readReplacements(replacementsPath); err != nil {
					return err
				}
			}
			return withApp(cmd, func(rt *session, a *app.App) error {
				blob, report, err := a.Assembler.Build(cmd.Context(), inv,
					site.GroupButtons(repl.Buttons),
					site.GroupPixels(repl.Pixels))
				if err != nil {
					return err
				}
				dest := output
				if dest == "" {
					dest = archive.ArchiveName(inv, replacementsPath != "")
				}
				if err := os.WriteFile(dest, blob, 0o644); err != nil {
					return fmt.Errorf("write archive: %w", err)
				}
				rt.logger.Info("archive written",
					zap.String("path", dest),
					zap.Int("entries", report.Entries),
					zap.Int("rewritten", report.Rewritten),
					zap.Int("skipped", len(report.Skipped)),
					zap.Int("selector_misses", report.Misses),
					zap.String("sha256", report.SHA256))
				_, err = fmt.Fprintln(cmd.OutOrStdout(), dest)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&inventoryPath, "inventory", "", "inventory .json or .yaml file")
	cmd.Flags().StringVar(&replacementsPath, "replacements", "", "replacements .json or .yaml file with buttons and pixels lists")
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default derived from the inventory host)")
	_ = cmd.MarkFlagRequired("inventory")
	return cmd
}
