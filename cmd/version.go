package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devlinkio/devlink/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints devlink version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.DevlinkVersion())
	},
}
