package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fundwise/steward/internal/config"
	"github.com/fundwise/steward/internal/sheets"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new steward workspace",
	Long: `Initialize a new steward workspace in the current directory.
This creates a .steward directory holding the configuration and the
change ledger database.`,
	Run: runInit,
}

var (
	initURL      string
	initDocument string
)

func init() {
	initCmd.Flags().StringVar(&initURL, "url", "http://localhost:3000", "Spreadsheet service URL")
	initCmd.Flags().StringVar(&initDocument, "document", "", "Spreadsheet document id")
}

func runInit(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	if _, err := config.FindRoot(); err == nil {
		exitError("steward workspace already exists")
	}
	if initDocument == "" {
		exitError("--document is required")
	}

	fmt.Printf("Initializing steward workspace...\n")
	fmt.Printf("Spreadsheet service: %s\n", initURL)
	fmt.Printf("Document: %s\n", initDocument)

	cfg, err := config.Initialize(initURL, initDocument)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	fmt.Printf("Connecting to spreadsheet service...\n")
	client := sheets.NewClient(cfg.SheetsURL, cfg.SpreadsheetID, cfg.APIToken())
	if err := client.Ping(ctx); err != nil {
		fmt.Printf("Warning: could not reach spreadsheet service: %v\n", err)
		fmt.Printf("The workspace was created; fix the connection before running commands.\n")
	} else {
		fmt.Printf("Connection OK\n")
	}

	fmt.Printf("Initialized steward workspace in %s\n", cfg.Path())
}
