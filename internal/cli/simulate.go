package cli

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateCount int
	simulatePrice float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-notify",
	Short: "Send a test notification through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateNotify(context.Background(), simulateCount, decimal.NewFromFloat(simulatePrice))
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateCount, "count", 5, "Available count reported in the test notification")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0.11, "Price reported in the test notification")
}
