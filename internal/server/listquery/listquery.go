// Package listquery turns the raw list parameters of the account listing
// (keyword, sort_by, sort, page, per_page) into a typed query for the store.
//
// A keyword of the form "field:v1,v2" restricts field to one of the values.
// Only the fields in Fields are accepted. Any other non-empty keyword is an
// OR-search: partial, case-insensitive on username and email, exact on id
// and wallet address.
package listquery

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/common"
)

// SortField is a column the listing can be ordered by.
type SortField string

const (
	SortByUsername  SortField = "username"
	SortByEmail     SortField = "email"
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
)

// Direction is 1 for ascending and -1 for descending.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// Field is a filterable account field.
type Field string

const (
	FieldID            Field = "id"
	FieldUsername      Field = "username"
	FieldEmail         Field = "email"
	FieldWalletAddress Field = "wallet_address"
	FieldRoles         Field = "roles"
)

// Fields lists every field accepted on the left of "field:values".
var Fields = []Field{FieldID, FieldUsername, FieldEmail, FieldWalletAddress, FieldRoles}

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100

	// MaxPage keeps (page-1)*per_page well inside int. Pages past the
	// last one come back empty.
	MaxPage = math.MaxInt32
)

var (
	ErrUnknownField = errors.New("unknown filter field")
	ErrEmptyValues  = errors.New("filter has no values")
)

// Filter selects accounts. The zero Filter matches everything.
type Filter struct {
	// Field and Values form an IN restriction when Field is set.
	Field  Field
	Values []string
	// Search is the OR-search term when set.
	Search string
}

// MatchAll reports whether the filter places no restriction.
func (f Filter) MatchAll() bool {
	return f.Field == "" && f.Search == ""
}

// Query is a fully normalized list request.
type Query struct {
	Filter  Filter
	SortBy  SortField
	Sort    Direction
	Page    int
	PerPage int
}

// Offset is the number of accounts skipped before the page.
func (q Query) Offset() int {
	if q.Page <= 1 || q.PerPage <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.PerPage {
		return math.MaxInt
	}
	return (q.Page - 1) * q.PerPage
}

// Params are list parameters as they arrive from the caller.
type Params struct {
	Keyword string
	SortBy  string
	Sort    string
	Page    string
	PerPage string
}

// Build normalizes p into a Query. Sort and paging values never fail; they
// fall back to defaults. Only a malformed keyword filter is an error, and it
// is reported as a common.ErrorBadRequest.
func Build(p Params) (Query, error) {
	filter, err := ParseKeyword(p.Keyword)
	if err != nil {
		return Query{}, &common.Error{Kind: common.ErrorBadRequest, Message: err.Error(), Err: err}
	}
	return Query{
		Filter:  filter,
		SortBy:  ParseSortBy(p.SortBy),
		Sort:    ParseDirection(p.Sort),
		Page:    ParsePositive(p.Page, DefaultPage, MaxPage),
		PerPage: ParsePositive(p.PerPage, DefaultPerPage, MaxPerPage),
	}, nil
}

// ParseKeyword splits keyword on the first ':'. With a separator the left
// side must name one of Fields and the right side is a comma list of values.
// Email values are lowercased to match stored emails.
func ParseKeyword(keyword string) (Filter, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return Filter{}, nil
	}

	name, rawValues, found := strings.Cut(keyword, ":")
	if !found {
		return Filter{Search: keyword}, nil
	}

	field, err := parseField(name)
	if err != nil {
		return Filter{}, err
	}

	var values []string
	for _, v := range strings.Split(rawValues, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if field == FieldEmail {
			v = common.NormalizeEmail(v)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return Filter{}, fmt.Errorf("%w: %s", ErrEmptyValues, field)
	}

	return Filter{Field: field, Values: values}, nil
}

func parseField(name string) (Field, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "_id" {
		name = string(FieldID)
	}
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// ParseSortBy maps anything outside the sortable set to created_at.
func ParseSortBy(s string) SortField {
	switch f := SortField(s); f {
	case SortByUsername, SortByEmail, SortByCreatedAt, SortByUpdatedAt:
		return f
	default:
		return SortByCreatedAt
	}
}

// ParseDirection returns Asc for "asc" and Desc for anything else.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "asc") {
		return Asc
	}
	return Desc
}

// ParsePositive reads an integer ≥ 1. Empty, zero or non-numeric input yields
// def; negative input is raised to 1. A positive max caps the result, also
// for numbers too large for int.
func ParsePositive(s string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if errors.Is(err, strconv.ErrRange) {
		err = nil
	}
	if err != nil || n == 0 {
		return def
	}
	if n < 1 {
		n = 1
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
