package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the change ledger",
	Long: `Show the change ledger, newest first. Entries marked with * can be
reverted with "steward revert <id>".`,
	Run: runLog,
}

var logLimit int

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "Maximum entries to show")
}

func runLog(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	changes, err := c.Store.RecentChanges(logLimit)
	if err != nil {
		exitError("failed to read ledger: %v", err)
	}
	if len(changes) == 0 {
		fmt.Println("No changes recorded")
		return
	}

	yellow := color.New(color.FgYellow)
	for _, rec := range changes {
		yellow.Printf("change %s", rec.ShortID())
		if rec.CanRevert {
			fmt.Print("  (revertable)")
		}
		fmt.Println()
		fmt.Printf("Date:      %s\n", rec.Timestamp.Format("Mon Jan 2 15:04:05 2006"))
		fmt.Printf("Operation: %s on %s\n", rec.Kind, rec.Table)
		fmt.Printf("Affected:  %d record(s)\n", rec.AffectedRecords)
		fmt.Printf("\n    %s\n\n", rec.Description)
	}
}
