package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Perform a single availability check and exit",
	Long: `Performs one probe of the configured service and country, applies the
notification state machine, purchases and notifies when indicated, then exits.
Intended for cron-style scheduling. Exits non-zero when the probe fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(context.Background())
	},
}
