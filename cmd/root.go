package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mobile-payments",
	Short: "Mobile money payments service",
	Long:  "Forwards premium subscription payments to Maviance SmobilPay, reconciles webhooks and polls, and activates premium access.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
