package cmd

import (
	"io"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devlinkio/devlink/util"
)

var connectCmd = &cobra.Command{
	Use:   "connect <serial> <port>",
	Short: "open a stream to a device port and pipe stdin/stdout over it",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := util.InitLog(logLevel, logFile); err != nil {
			os.Exit(ExitSetupFailed)
		}

		serial := args[0]
		port, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			log.Errorf("invalid port %s: %v", args[1], err)
			os.Exit(ExitSetupFailed)
		}

		conn := newConnector(loadConfig())

		stream, err := conn.ConnectToDevice(serial, uint16(port))
		if err != nil {
			log.Errorf("failed connecting to device %s port %d: %v", serial, port, err)
			os.Exit(ExitSetupFailed)
		}
		defer func() {
			if err := stream.Close(); err != nil {
				log.Warnf("error closing the device stream: %v", err)
			}
		}()

		pipeStdio(stream)
	},
}

// pipeStdio shuffles bytes between the device stream and stdin/stdout until
// the device side closes.
func pipeStdio(stream io.ReadWriter) {
	go func() {
		if _, err := io.Copy(stream, os.Stdin); err != nil {
			log.Debugf("stopped copying stdin to the device: %v", err)
		}
	}()

	if _, err := io.Copy(os.Stdout, stream); err != nil {
		log.Debugf("device stream closed: %v", err)
	}
}
