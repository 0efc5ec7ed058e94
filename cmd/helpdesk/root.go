package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "helpdesk",
	Short:         "Helpdesk API: tickets, technician assistance, chat and FAQ bot",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(faqCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(profileCmd)
}
