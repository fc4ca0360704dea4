package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/trackmock/trackmock/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trackmock %s (commit %s, %s, %s/%s)\n",
			version.Version, version.Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func initVersionCmd() {
	rootCmd.AddCommand(versionCmd)
}
