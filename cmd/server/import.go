package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Ingest an xlsx or csv workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.service.IngestFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
}

func (c *cli) syncOracleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-oracle",
		Short: "Pull the Oracle feed once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.syncer.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
