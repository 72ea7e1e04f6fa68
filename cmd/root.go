package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devlinkio/devlink/connector"
	"github.com/devlinkio/devlink/muxd"
)

const (
	// ExitSetupFailed defines exit code
	ExitSetupFailed = 1
)

var (
	configPath string
	logLevel   string
	logFile    string
	daemonAddr string

	rootCmd = &cobra.Command{
		Use:          "devlink",
		Short:        "connect to devices attached to a devlinkd daemon",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/devlink/config.json", "devlink config file location")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "sets devlink log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "console", "sets devlink log path. If console is specified the log will be output to stdout")
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "daemon-addr", "", "devlinkd address (unix socket path or host:port), overrides the config file")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(versionCmd)
}

// newConnector builds the process Connector against the configured daemon.
func newConnector(config *Config) *connector.Connector {
	addr := config.DaemonAddr
	if daemonAddr != "" {
		addr = daemonAddr
	}
	if addr == "" {
		addr = muxd.DefaultDaemonAddr
	}

	return connector.New(connector.Config{
		Detector: muxd.NewDetector(addr),
		OpenChannel: func() (connector.PacketChannel, error) {
			channel, err := muxd.Open(addr)
			if err != nil {
				return nil, err
			}
			return channel, nil
		},
	})
}

// loadConfig reads the config file; a missing file is not fatal, flags and
// defaults still apply.
func loadConfig() *Config {
	config, err := Read(configPath)
	if err != nil {
		log.Debugf("no usable config at %s: %v", configPath, err)
		return &Config{}
	}
	return config
}
