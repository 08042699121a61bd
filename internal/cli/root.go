// Package cli implements the command-line interface for steward.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fundwise/steward/internal/config"
	"github.com/fundwise/steward/internal/core"
	"github.com/fundwise/steward/internal/interpreter"
	"github.com/fundwise/steward/internal/sheets"
	"github.com/fundwise/steward/internal/store"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config   *config.Config
	Store    *store.Store
	Client   sheets.ClientInterface
	Pipeline *core.Pipeline
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}

// initContext initializes config and store (no sheets client)
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	st, err := store.New(cfg.DatabasePath(), store.Options{
		MaxChanges:   cfg.MaxChanges,
		MaxSnapshots: cfg.MaxSnapshots,
	})
	if err != nil {
		exitError("failed to open store: %v", err)
	}

	return &cmdContext{Config: cfg, Store: st}
}

// initFullContext initializes config, store, sheets client, and pipeline.
// The interpreter is Gemini when an API key is present, otherwise a static
// one that accepts only structured commands.
func initFullContext(ctx context.Context) *cmdContext {
	c := initContext()

	client := sheets.NewRetryClient(
		sheets.NewClient(c.Config.SheetsURL, c.Config.SpreadsheetID, c.Config.APIToken()),
		sheets.DefaultRetryConfig(),
	)
	c.Client = client

	var interp interpreter.Interpreter
	if key := c.Config.GeminiAPIKey(); key != "" {
		g, err := interpreter.NewGemini(ctx, key, c.Config.GeminiModel)
		if err != nil {
			c.Close()
			exitError("failed to create interpreter: %v", err)
		}
		interp = g
	} else {
		interp = interpreter.NewStatic()
	}

	c.Pipeline = core.NewPipeline(core.PipelineOptions{
		Interpreter:       interp,
		Client:            client,
		Store:             c.Store,
		PendingTTL:        c.Config.PendingTTL(),
		CriticalThreshold: c.Config.CriticalThreshold,
	})
	return c
}

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Change management for fundraising data",
	Long: `Steward is a change-management layer for spreadsheet-backed fundraising
data. Every write is risk-classified, risky writes wait for explicit
confirmation, and everything that executes lands in a revertible change
ledger with automatic backups.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(serveCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
