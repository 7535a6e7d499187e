package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func (c *cli) exportCmd() *cobra.Command {
	var manuscript, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the invitation report of a manuscript to an .xlsx file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if filepath.Ext(out) != ".xlsx" {
				return fmt.Errorf("output file must end in .xlsx: %s", out)
			}

			svc, err := c.open(cmd, false)
			if err != nil {
				return err
			}
			defer svc.close()

			tmp, err := os.CreateTemp(filepath.Dir(out), ".export-*.xlsx")
			if err != nil {
				return fmt.Errorf("create temp file: %w", err)
			}
			defer os.Remove(tmp.Name())

			if err := svc.queries.ExportInvitations(cmd.Context(), manuscript, tmp); err != nil {
				_ = tmp.Close()
				return err
			}
			if err := tmp.Close(); err != nil {
				return fmt.Errorf("close report: %w", err)
			}
			if err := os.Rename(tmp.Name(), out); err != nil {
				return fmt.Errorf("move report into place: %w", err)
			}
			c.printf("Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&manuscript, "manuscript", "m", "", "Manuscript identifier")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output .xlsx file")
	_ = cmd.MarkFlagRequired("manuscript")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
