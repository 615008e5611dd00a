// graphd is the graph store daemon: it connects the engine to NATS and
// SQLite and serves the command/query entry points. It also carries the
// operational subcommands for replaying and verifying event streams.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
