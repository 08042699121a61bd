package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session for data operations",
	Long: `Start an interactive session. Each line is interpreted as a data
operation; "confirm <id>" and "cancel <id>" resolve pending operations
without leaving the session. Type "exit" or press Ctrl-D to quit.`,
	Run: runChat,
}

func runChat(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initFullContext(ctx)
	defer c.Close()

	cyan := color.New(color.FgCyan)
	cyan.Println("steward interactive session. Type \"exit\" to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if id, ok := strings.CutPrefix(line, "confirm "); ok {
			res, err := c.Pipeline.ConfirmOperation(ctx, strings.TrimSpace(id))
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			printResult(res)
			continue
		}
		if id, ok := strings.CutPrefix(line, "cancel "); ok {
			res, err := c.Pipeline.CancelOperation(strings.TrimSpace(id))
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			printResult(res)
			continue
		}

		res, err := c.Pipeline.ExecuteText(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printResult(res)
	}
}
