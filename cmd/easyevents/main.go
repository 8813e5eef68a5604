// Command easyevents converts raw game-server events into derived events.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/easyevents/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
