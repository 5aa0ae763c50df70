package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "hububba",
		Short:        "Hububba Utils Discord bot",
		Long:         `Hububba Utils runs the community Discord bot: tickets, commission orders, invoices, moderation and stream alerts.`,
		RunE:         runBot,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newRunCommand(),
		newOrdersCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
