package cmd

import (
	"github.com/devlinkio/devlink/util"
)

// Config holds the daemon endpoint the CLI talks to.
type Config struct {
	// unix socket path or host:port of devlinkd
	DaemonAddr string `json:"daemon_addr"`
}

// Write writes configPath to a file
func (config *Config) Write(configPath string) error {
	return util.WriteJson(configPath, config)
}

// Read reads a config from the given path
func Read(configPath string) (*Config, error) {
	config := &Config{}
	if _, err := util.ReadJson(configPath, config); err != nil {
		return nil, err
	}
	return config, nil
}
