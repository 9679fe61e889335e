package config

import (
	"flag"
	"strings"
	"time"

	"github.com/dmitrijs2005/accounts/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   storage backend: postgres or memory
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   password hashing secret
//	-p string   password scheme (argon2id, hmac-sha256, bcrypt)
//	-t int      access token validity, hours
//	-o int      store call timeout, seconds
//	-admins     comma-separated admin emails
//	-l string   log level
//
// Only the flags above are handed to the FlagSet; see flagx.FilterArgs.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-m", "-d", "-s", "-k", "-p", "-t", "-o", "-admins", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.Storage, "m", config.Storage, "storage backend (postgres|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token secret key")
	fs.StringVar(&config.PasswordSecret, "k", config.PasswordSecret, "password hashing secret")
	fs.StringVar(&config.PasswordScheme, "p", config.PasswordScheme, "password scheme")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	tokenHours := fs.Int("t", int(config.AccessTokenValidityDuration.Hours()), "access token validity (in hours)")
	storeTimeout := fs.Int("o", int(config.StoreTimeout.Seconds()), "store call timeout (in seconds)")
	admins := fs.String("admins", strings.Join(config.AdminEmails, ","), "comma-separated admin emails")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*tokenHours) * time.Hour
	config.StoreTimeout = time.Duration(*storeTimeout) * time.Second
	config.AdminEmails = splitList(*admins)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
