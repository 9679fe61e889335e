package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dmitrijs2005/accounts/internal/client/client"
	"github.com/dmitrijs2005/accounts/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) readSecret(prompt string) (string, error) {
	pw, err := getPassword(prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// Register prompts for an email, a password and its confirmation and
// creates the account. The server enforces the password policy.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}
	confirmation, err := a.readSecret("Repeat password")
	if err != nil {
		return err
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	resp, err := a.client.Register(ctx, email, password, confirmation)
	if err != nil {
		a.report("Registration failed", err)
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (id %s)\n", resp.Email, resp.ID)
	return nil
}

// Login prompts for credentials and keeps the returned token for the rest
// of the session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	resp, err := a.client.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			a.setMode(ModeOffline)
		}
		a.report("Login unsuccessful", err)
		return err
	}

	a.mu.Lock()
	a.email = resp.Email
	a.mu.Unlock()
	a.setMode(ModeOnline)

	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Logout forgets the token held by the client.
func (a *App) Logout(ctx context.Context) error {
	a.client.Logout()

	a.mu.Lock()
	a.email = ""
	a.mu.Unlock()

	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) report(what string, err error) {
	log.Printf("%s: %s", what, err.Error())
	fmt.Fprintf(a.out, "%s: %s\n", what, err.Error())
}
