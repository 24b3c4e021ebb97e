package commands

import (
	"os"

	"promoscrape/internal/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(retailersCmd)
}

var retailersCmd = &cobra.Command{
	Use:   "retailers",
	Short: "Prints the retailers a scrape would process.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Retailer"})
		for i, r := range cfg.Retailers {
			t.AppendRow(table.Row{i + 1, r})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
