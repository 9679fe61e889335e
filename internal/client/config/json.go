package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/dmitrijs2005/accounts/internal/timex"
)

// JsonConfig is the on-disk shape of the CLI configuration file.
type JsonConfig struct {
	ServerEndpointAddr  *string         `json:"server_endpoint_addr"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
}

func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}
