package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/dmitrijs2005/accounts/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "168h" and integer nanoseconds are accepted.
// Pointers distinguish "absent" from "zero".
type JsonConfig struct {
	EndpointAddrGRPC            *string         `json:"endpoint_addr_grpc"`
	Storage                     *string         `json:"storage"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	PasswordSecret              *string         `json:"password_secret"`
	PasswordScheme              *string         `json:"password_scheme"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	StoreTimeout                *timex.Duration `json:"store_timeout"`
	AdminEmails                 []string        `json:"admin_emails"`
	LogLevel                    *string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config in args.
// Without the flag nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.Storage, c.Storage)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.PasswordSecret, c.PasswordSecret)
	setString(&config.PasswordScheme, c.PasswordScheme)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.StoreTimeout != nil {
		config.StoreTimeout = c.StoreTimeout.Duration
	}
	if c.AdminEmails != nil {
		config.AdminEmails = c.AdminEmails
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
