package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devlinkio/devlink/util"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "list devices attached to the daemon",
	Run: func(cmd *cobra.Command, args []string) {
		if err := util.InitLog(logLevel, logFile); err != nil {
			os.Exit(ExitSetupFailed)
		}

		conn := newConnector(loadConfig())

		serials := conn.ConnectedDevices()
		if len(serials) == 0 {
			log.Infof("no devices attached")
			return
		}
		for _, serial := range serials {
			fmt.Println(serial)
		}
	},
}
