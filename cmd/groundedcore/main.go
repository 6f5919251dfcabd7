// Command groundedcore runs the Grounded-Conversation Orchestration Core:
// it wires the Cache (C1), Session Memory (C2), Evidence Store & Retriever
// (C3), LLM Provider (C4), Tool Registry & Executor (C5), Resilient Tool
// Client (C6), Policy/Release/Experiment Store (C7), Evidence Gate (C8),
// Dialog Runtime (C9), Trace Ledger (C10), and Alert Evaluator & Manager
// (C11) into one process and serves spec.md §6's HTTP surface.
//
// Grounded on the teacher's cmd/nexus: a cobra root command with a "serve"
// subcommand that loads config, builds the dependency graph, and blocks
// until SIGINT/SIGTERM, narrowed from the teacher's channel-adapter
// bootstrap to this service's own component graph.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "groundedcore",
		Short:         "Grounded-conversation orchestration core for persona-driven NPC dialog",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(buildServeCmd())
	root.AddCommand(buildStatusCmd())
	root.AddCommand(buildVersionCmd())
	return root
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func buildStatusCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running instance's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8080", "base URL of a running groundedcore instance")
	return cmd
}
