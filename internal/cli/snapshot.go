package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage backup snapshots",
	Long: `Manage full backup snapshots of every table. Snapshots live in a
bounded ring; creating one past capacity evicts the oldest.`,
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create [description]",
	Short: "Take a full backup of every table",
	Args:  cobra.MaximumNArgs(1),
	Run:   runSnapshotCreate,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Run:   runSnapshotList,
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Roll every table back to a snapshot",
	Long: `Roll every table back to the state captured in a snapshot. Restore
is a critical operation: it is parked for confirmation, and the current
state is snapshotted before anything is overwritten.`,
	Args: cobra.ExactArgs(1),
	Run:  runSnapshotRestore,
}

func init() {
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
}

func runSnapshotCreate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initFullContext(ctx)
	defer c.Close()

	description := ""
	if len(args) > 0 {
		description = args[0]
	}

	res, err := c.Pipeline.CreateSnapshot(ctx, description)
	if err != nil {
		exitError("failed to create snapshot: %v", err)
	}
	printResult(res)
}

func runSnapshotList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	snaps, err := c.Store.ListSnapshots()
	if err != nil {
		exitError("failed to list snapshots: %v", err)
	}
	if len(snaps) == 0 {
		fmt.Println("No snapshots stored")
		return
	}

	for _, s := range snaps {
		fmt.Printf("%s  %s  %6d rows  %8d bytes  %s\n",
			shortID(s.ID), s.Timestamp.Format("2006-01-02 15:04:05"),
			s.RowCount, s.Size, s.Description)
	}
}

func runSnapshotRestore(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initFullContext(ctx)
	defer c.Close()

	res, err := c.Pipeline.RestoreSnapshot(ctx, args[0])
	if err != nil {
		exitError("%v", err)
	}
	printResult(res)
}
