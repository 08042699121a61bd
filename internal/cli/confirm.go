package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <pending-id>",
	Short: "Execute a pending operation",
	Long: `Execute an operation that was parked for confirmation. Pending
operations expire after the configured wait window and can be confirmed
at most once.`,
	Args: cobra.ExactArgs(1),
	Run:  runConfirm,
}

func runConfirm(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initFullContext(ctx)
	defer c.Close()

	res, err := c.Pipeline.ConfirmOperation(ctx, args[0])
	if err != nil {
		exitError("%v", err)
	}
	printResult(res)
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <pending-id>",
	Short: "Discard a pending operation",
	Args:  cobra.ExactArgs(1),
	Run:   runCancel,
}

func runCancel(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initFullContext(ctx)
	defer c.Close()

	res, err := c.Pipeline.CancelOperation(args[0])
	if err != nil {
		exitError("%v", err)
	}
	printResult(res)
}
