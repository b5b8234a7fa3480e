package cli

import (
	"context"

	"github.com/spf13/cobra"

	"number-stock-alerts/internal/app"
)

var purchasesLimit int

var purchasesCmd = &cobra.Command{
	Use:   "purchases",
	Short: "List recently purchased numbers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Purchases(context.Background(), app.PurchasesOptions{
			Limit: purchasesLimit,
		})
	},
}

func init() {
	purchasesCmd.Flags().IntVar(&purchasesLimit, "limit", 20, "Maximum number of purchases to list")
}
