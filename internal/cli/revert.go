package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var revertCmd = &cobra.Command{
	Use:   "revert <change-id>",
	Short: "Undo a recorded change",
	Long: `Undo a recorded change by writing its inverse back to the
spreadsheet. The change id may be given in full or as its 8-character
short form. Each change can be reverted once; the reversal itself is
recorded in the ledger. A safety snapshot is taken before anything is
written.`,
	Args: cobra.ExactArgs(1),
	Run:  runRevert,
}

func runRevert(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initFullContext(ctx)
	defer c.Close()

	res, err := c.Pipeline.RevertChange(ctx, args[0])
	if err != nil {
		exitError("%v", err)
	}
	printResult(res)
}
