package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fundwise/steward/internal/models"
)

var execCmd = &cobra.Command{
	Use:   "exec <instruction>",
	Short: "Run a natural-language data operation",
	Long: `Run a single data operation described in natural language.

The instruction is interpreted into a structured command, risk-classified,
and either executed immediately (low risk) or parked pending confirmation.

Examples:
  steward exec "record a 50000 contribution from F001 in Karnataka"
  steward exec "delete prospect P009"
  steward exec --json '{"action":"update","target":"contributions","parameters":{"id":"C001","status":"received"}}'`,
	Args: cobra.ArbitraryArgs,
	Run:  runExec,
}

var execJSON string

func init() {
	execCmd.Flags().StringVar(&execJSON, "json", "", "Structured command as JSON, bypassing the interpreter")
}

func runExec(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initFullContext(ctx)
	defer c.Close()

	var (
		res *models.Result
		err error
	)
	if execJSON != "" {
		var command models.Command
		if err := json.Unmarshal([]byte(execJSON), &command); err != nil {
			exitError("invalid command JSON: %v", err)
		}
		res, err = c.Pipeline.ExecuteCommand(ctx, &command)
	} else {
		if len(args) == 0 {
			exitError("an instruction or --json is required")
		}
		res, err = c.Pipeline.ExecuteText(ctx, strings.Join(args, " "))
	}
	if err != nil {
		exitError("%v", err)
	}

	printResult(res)
}

// printResult renders a pipeline result for the terminal.
func printResult(res *models.Result) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	switch {
	case res.ConfirmationRequired:
		yellow.Println("Confirmation required")
		fmt.Println(res.Message)
	case res.Success:
		green.Println(res.Message)
		if res.ChangeID != "" {
			fmt.Printf("Change: %s\n", shortID(res.ChangeID))
		}
		if res.SnapshotID != "" {
			fmt.Printf("Snapshot: %s\n", shortID(res.SnapshotID))
		}
	default:
		red.Println(res.Message)
	}
}
