package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/accounts/internal/api"
)

var errRolesUsage = errors.New("usage: roles <account-id> <role> [role...]")

// Roles replaces the roles of an account. Admin only.
func (a *App) Roles(ctx context.Context, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(a.out, errRolesUsage.Error())
		return errRolesUsage
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	resp, err := a.client.AssignRoles(ctx, args[0], args[1:])
	if err != nil {
		a.report("Role update failed", err)
		return err
	}

	fmt.Fprintf(a.out, "Account %s now has roles: %s\n", resp.ID, strings.Join(resp.Roles, ", "))
	return nil
}

// List prints one page of accounts. Arguments are key=value pairs
// (keyword, sort_by, sort, page, per_page); a bare word is the keyword.
// Admin only.
//
//	list email:bob@example.com sort_by=created_at sort=desc page=2
func (a *App) List(ctx context.Context, args []string) error {
	opts, err := parseOptions(args, "keyword")
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return err
	}

	req := &api.ListAccountsRequest{
		Keyword: opts["keyword"],
		SortBy:  opts["sort_by"],
		Sort:    opts["sort"],
		Page:    opts["page"],
		PerPage: opts["per_page"],
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	resp, err := a.client.ListAccounts(ctx, req)
	if err != nil {
		a.report("List failed", err)
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLES\tVERIFIED")
	for _, acc := range resp.Accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", acc.ID, acc.Username, acc.Email, strings.Join(acc.Roles, ","), acc.IsVerified)
	}
	_ = tw.Flush()

	p := resp.Pagination
	fmt.Fprintf(a.out, "page %d/%d, %d per page, %d total\n", p.Page, p.TotalPages, p.PerPage, p.TotalCount)
	return nil
}
