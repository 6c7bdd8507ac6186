package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"playlist-cards-go/internal/archive"
	"playlist-cards-go/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every category archive to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer log.Close()

			store := archive.NewStore(cfg.DataDir, log.Entry, filepath.Base(cfg.StateFile()))
			rep, err := export.Write(out, store, log.Entry)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d cards from %d categories to %s\n", rep.Cards, rep.Categories, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "cards.xlsx", "Workbook path")
	return cmd
}
