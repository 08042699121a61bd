// Command steward is the change-management CLI and API server for
// spreadsheet-backed fundraising data.
package main

import (
	"os"

	"github.com/fundwise/steward/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
