package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/accounts/internal/client/client"
	"github.com/dmitrijs2005/accounts/internal/client/config"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config *config.Config
	client client.Client
	reader *bufio.Reader
	out    io.Writer

	mu    sync.Mutex
	mode  Mode
	email string
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewAccountClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return newApp(c, apiClient, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, cl client.Client, in io.Reader, out io.Writer) *App {
	return &App{config: c, client: cl, reader: bufio.NewReader(in), out: out}
}

func (a *App) Run(ctx context.Context) {
	defer a.client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.config.OnlineCheckInterval > 0 {
		go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	}

	fmt.Fprintln(a.out, "Accounts CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.email != "" {
		s = a.email + " "
	}
	s += string(a.mode)
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// requestContext bounds a single call by the configured timeout.
func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.client.Ping(pctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
