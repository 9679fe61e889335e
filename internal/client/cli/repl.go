package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Me(ctx context.Context) error
	Update(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Roles(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from scanner until EOF, "exit" or "quit".
//
//	Not logged in:
//	  help, register, login, exit | quit
//
//	Logged in:
//	  help, me, update, passwd, logout, exit | quit
//	  roles <id> <role>...   (admin)
//	  list [key=value...]    (admin)
//
// Handlers report their own errors, so they are dropped here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("accounts %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if requiresLogin(cmd) && !a.isLoggedIn() {
			printlnFn("Please login first")
			continue
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: me, update, passwd, roles <id> <role>..., list [key=value...], logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "me":
			_ = a.Me(ctx)

		case "update":
			_ = a.Update(ctx)

		case "passwd":
			_ = a.ChangePassword(ctx)

		case "roles":
			_ = a.Roles(ctx, args)

		case "l", "list":
			_ = a.List(ctx, args)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func requiresLogin(cmd string) bool {
	switch cmd {
	case "me", "update", "passwd", "roles", "l", "list", "logout":
		return true
	}
	return false
}
