package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devlinkio/devlink/muxd"
	"github.com/devlinkio/devlink/util"
)

var (
	initDaemonAddr string

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "generate a devlink config file",
		Run: func(cmd *cobra.Command, args []string) {
			if err := util.InitLog(logLevel, logFile); err != nil {
				os.Exit(ExitSetupFailed)
			}

			if _, err := os.Stat(configPath); !os.IsNotExist(err) {
				log.Warnf("config already exists under path %s", configPath)
				os.Exit(ExitSetupFailed)
			}

			if initDaemonAddr == "" {
				initDaemonAddr = muxd.DefaultDaemonAddr
			}

			config := &Config{DaemonAddr: initDaemonAddr}
			if err := config.Write(configPath); err != nil {
				log.Errorf("failed writing config to %s: %s", configPath, err.Error())
				os.Exit(ExitSetupFailed)
			}

			log.Infof("a new config has been generated and written to %s", configPath)
		},
	}
)

func init() {
	initCmd.PersistentFlags().StringVar(&initDaemonAddr, "addr", "", "devlinkd address to store in the config, defaults to "+muxd.DefaultDaemonAddr)
}
