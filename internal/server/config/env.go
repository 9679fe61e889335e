package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors Config for environment parsing. Unset variables leave
// the pointer nil so earlier layers win.
type envConfig struct {
	EndpointAddrGRPC            *string        `env:"ACCOUNTS_GRPC_ADDR"`
	Storage                     *string        `env:"ACCOUNTS_STORAGE"`
	DatabaseDSN                 *string        `env:"ACCOUNTS_DATABASE_DSN"`
	SecretKey                   *string        `env:"ACCOUNTS_SECRET_KEY"`
	PasswordSecret              *string        `env:"ACCOUNTS_PASSWORD_SECRET"`
	PasswordScheme              *string        `env:"ACCOUNTS_PASSWORD_SCHEME"`
	AccessTokenValidityDuration *time.Duration `env:"ACCOUNTS_TOKEN_TTL"`
	StoreTimeout                *time.Duration `env:"ACCOUNTS_STORE_TIMEOUT"`
	AdminEmails                 []string       `env:"ACCOUNTS_ADMIN_EMAILS" envSeparator:","`
	LogLevel                    *string        `env:"ACCOUNTS_LOG_LEVEL"`
}

func parseEnv(config *Config) error {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setString(&config.EndpointAddrGRPC, e.EndpointAddrGRPC)
	setString(&config.Storage, e.Storage)
	setString(&config.DatabaseDSN, e.DatabaseDSN)
	setString(&config.SecretKey, e.SecretKey)
	setString(&config.PasswordSecret, e.PasswordSecret)
	setString(&config.PasswordScheme, e.PasswordScheme)
	setString(&config.LogLevel, e.LogLevel)

	if e.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = *e.AccessTokenValidityDuration
	}
	if e.StoreTimeout != nil {
		config.StoreTimeout = *e.StoreTimeout
	}
	if len(e.AdminEmails) > 0 {
		config.AdminEmails = e.AdminEmails
	}
	return nil
}
