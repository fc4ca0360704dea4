// Package cli implements the trackmock command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command. Running trackmock with no subcommand starts
// the server, which is the overwhelmingly common invocation.
var rootCmd = &cobra.Command{
	Use:   "trackmock",
	Short: "trackmock is a stateful mock of an issue-tracking REST API",
	Long: `trackmock reproduces the externally observable behavior of an
issue-tracking REST API: platform issues, agile boards and sprints,
service-desk requests, webhooks, rate limiting and an operator control
plane for exporting, importing and resetting state.

It exists so client integrations, automation agents and contract-test
suites can be exercised without a live backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(&serveFlagVals)
	},
}

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	initServeCmd()
	initVersionCmd()
}
