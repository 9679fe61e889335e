// Package config loads runtime configuration for the accounts CLI.
//
// Values are layered: built-in defaults, then an optional JSON file selected
// with -c or -config, then command-line flags.
//
//	-a string   address:port of the account service
//	-i int      connectivity check interval (seconds)
//	-t int      per-request timeout (seconds)
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the CLI.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 5 * time.Second
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config from defaults, the JSON file and flags.
// Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
