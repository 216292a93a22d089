package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "deskd",
	Short:         "Helpdesk ticketing with AI-assisted agent assignment",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(expertiseCmd)
	rootCmd.AddCommand(ticketCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func main() {
	// A local .env is optional; environment always wins over it.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
