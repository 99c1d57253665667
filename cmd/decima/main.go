// Command decima browses and extracts hash-addressed archive containers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/meigma/decima/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		stop()
		os.Exit(1)
	}
}
