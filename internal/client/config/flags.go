package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/accounts/internal/flagx"
)

// parseFlags overlays -a, -i and -t. Other flags in args are ignored.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-i", "-t"})

	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the account service")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "connectivity check interval (in seconds)")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
		case "t":
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
