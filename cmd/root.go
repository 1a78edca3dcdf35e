package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "payments-webhooks",
	Short: "Payment webhooks microservice",
	Long:  "A microservice that ingests Square payment webhooks and reconciles them into local payments, bookings and product orders.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
