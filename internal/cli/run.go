package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the availability monitor loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(context.Background())
	},
}
