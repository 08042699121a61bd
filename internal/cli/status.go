package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fundwise/steward/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline status",
	Long: `Show recent changes, revertable changes, critical operations,
stored snapshots, and operations waiting for confirmation.`,
	Run: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initFullContext(ctx)
	defer c.Close()

	status, err := c.Pipeline.GetStatus()
	if err != nil {
		exitError("failed to load status: %v", err)
	}

	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	if len(status.PendingOperations) > 0 {
		yellow.Println("Pending operations (awaiting confirmation):")
		for _, p := range status.PendingOperations {
			fmt.Printf("  %s  %-12s %-14s %s  (held %s)\n",
				shortID(p.ID), p.Operation.RiskTier, p.Operation.Kind,
				p.Operation.Description, time.Since(p.CreatedAt).Round(time.Second))
		}
		fmt.Println()
	}

	fmt.Println("Recent changes:")
	if len(status.RecentChanges) == 0 {
		fmt.Println("  (none)")
	}
	for _, rec := range status.RecentChanges {
		printChangeLine(rec)
	}

	if len(status.CriticalOperations) > 0 {
		fmt.Println()
		red.Println("Critical operations:")
		for _, rec := range status.CriticalOperations {
			printChangeLine(rec)
		}
	}

	fmt.Println()
	cyan.Printf("Snapshots: %d stored\n", len(status.Snapshots))
	for _, s := range status.Snapshots {
		fmt.Printf("  %s  %s  %d rows  %s\n",
			shortID(s.ID), s.Timestamp.Format("2006-01-02 15:04"), s.RowCount, s.Description)
	}

	fmt.Printf("Revertable changes: %d\n", len(status.RevertableChanges))
}

func printChangeLine(rec *models.ChangeRecord) {
	marker := " "
	if rec.CanRevert {
		marker = "*"
	}
	fmt.Printf("  %s %s  %-12s %-14s %3d record(s)  %s\n",
		marker, rec.ShortID(), rec.Table, rec.Kind, rec.AffectedRecords, rec.Description)
}
