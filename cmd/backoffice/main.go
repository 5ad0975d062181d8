package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "Production tasks and expense ledger for a small workshop",
	Long: `backoffice tracks production tasks with live deadline countdowns and an
expense ledger with CSV export and printable reports. The serve command runs
the Telegram bot; the other commands work directly on the database.

Settings come from backoffice.yaml and BACKOFFICE_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./backoffice.yaml)")
	rootCmd.AddCommand(serveCmd(), exportCmd(), userCmd(), saleCmd(), categoryCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
