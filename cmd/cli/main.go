// Package main implements the operator CLI against a running node's
// httpapi surface (spec §6), following the one-subcommand-per-file
// layout the node's own cmd/cli grew from.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// buildRootCmd assembles the minactl command tree. Split out from main so
// tests can execute the same wiring against a fake HTTP backend.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "minactl", Short: "operate a running node over its HTTP RPC surface"}
	root.PersistentFlags().String("addr", "http://127.0.0.1:3085", "node HTTP RPC address")

	RegisterState(root)
	RegisterWatch(root)
	RegisterReplay(root)
	return root
}

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
