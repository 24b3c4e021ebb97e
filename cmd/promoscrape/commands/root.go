package commands

import (
	"context"
	"fmt"
	"os"

	"promoscrape/internal/config"
	"promoscrape/internal/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	retailers  *[]string
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "promoscrape.json5", "The config file, <name>.local.<ext> is merged on top if present.")
	verbose = rootCmd.PersistentFlags().Bool("verbose", false, "Log debug output.")
	retailers = rootCmd.PersistentFlags().StringArrayP("retailer", "r", nil, "Only process this retailer instead of the catalog, can be repeated.")
}

var rootCmd = &cobra.Command{
	Use:   "promoscrape",
	Short: "promoscrape collects retailer promotions and their nearest stores from promoscore.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config and applies the flags shared by all commands.
func loadConfig() (config.Config, error) {
	cfg, err := config.Read(*configPath)
	if err != nil {
		return config.Config{}, err
	}
	if len(*retailers) > 0 {
		cfg.Retailers = *retailers
		cfg.ApplyDefaults()
		err = cfg.Validate()
		if err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}
