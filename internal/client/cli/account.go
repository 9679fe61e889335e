package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/accounts/internal/api"
)

// Me prints the current account.
func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	acc, err := a.client.Me(ctx)
	if err != nil {
		a.report("Cannot load account", err)
		return err
	}

	printAccount(a.out, acc)
	return nil
}

// Update asks for a new username, email and wallet address. An empty answer
// keeps the current value.
func (a *App) Update(ctx context.Context) error {
	rctx, cancel := a.requestContext(ctx)
	acc, err := a.client.Me(rctx)
	cancel()
	if err != nil {
		a.report("Cannot load account", err)
		return err
	}

	req := &api.UpdateProfileRequest{
		Username:      acc.Username,
		Email:         acc.Email,
		WalletAddress: acc.WalletAddress,
	}

	prompts := []struct {
		label string
		dst   *string
	}{
		{"Username", &req.Username},
		{"Email", &req.Email},
		{"Wallet address", &req.WalletAddress},
	}
	for _, p := range prompts {
		v, err := getSimpleText(a.reader, fmt.Sprintf("%s [%s]", p.label, *p.dst), a.out)
		if err != nil {
			return err
		}
		if v != "" {
			*p.dst = v
		}
	}

	rctx, cancel = a.requestContext(ctx)
	defer cancel()

	resp, err := a.client.UpdateProfile(rctx, req)
	if err != nil {
		a.report("Update failed", err)
		return err
	}

	a.mu.Lock()
	a.email = resp.Email
	a.mu.Unlock()

	fmt.Fprintf(a.out, "Updated: %s <%s> wallet=%q\n", resp.Username, resp.Email, resp.WalletAddress)
	return nil
}

// ChangePassword asks for the current password and a confirmed new one.
func (a *App) ChangePassword(ctx context.Context) error {
	req := &api.ChangePasswordRequest{}

	var err error
	if req.OldPassword, err = a.readSecret("Current password"); err != nil {
		return err
	}
	if req.NewPassword, err = a.readSecret("New password"); err != nil {
		return err
	}
	if req.NewPasswordConfirmation, err = a.readSecret("Repeat new password"); err != nil {
		return err
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.client.ChangePassword(ctx, req); err != nil {
		a.report("Password change failed", err)
		return err
	}

	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func printAccount(w io.Writer, acc *api.Account) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", acc.ID)
	fmt.Fprintf(tw, "username:\t%s\n", acc.Username)
	fmt.Fprintf(tw, "email:\t%s\n", acc.Email)
	fmt.Fprintf(tw, "wallet:\t%s\n", acc.WalletAddress)
	fmt.Fprintf(tw, "roles:\t%s\n", strings.Join(acc.Roles, ","))
	fmt.Fprintf(tw, "verified:\t%t\n", acc.IsVerified)
	fmt.Fprintf(tw, "created:\t%s\n", acc.CreatedAt.Format("2006-01-02 15:04:05"))
	_ = tw.Flush()
}
