package commands

import (
	"encoding/json"
	"fmt"

	"promoscrape/internal/export"
	"promoscrape/internal/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Prints the effective config with secrets redacted.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		cfg = cfg.Redacted()
		outputs := make([]string, len(cfg.Outputs))
		for i, o := range cfg.Outputs {
			outputs[i] = export.DisplayTarget(o)
		}
		cfg.Outputs = outputs

		serialized, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			serviceutil.Fatal("failed to serialize config", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(serialized))
	},
}
