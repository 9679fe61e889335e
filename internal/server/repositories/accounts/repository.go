// Package accounts is the account store adapter. Every failure leaves the
// package as a *common.Error: ErrorNotFound for a missing record,
// ErrorConflict for a taken email and ErrorInternal for store faults.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/listquery"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

// Lookup selects a single account. All set fields must match. Email and
// Password are compared exactly, so Email must already be normalized and
// Password must be a stored digest.
type Lookup struct {
	ID        string
	Email     string
	Password  string
	ExcludeID string

	// WithPassword includes the digest in the result.
	WithPassword bool
}

func (l Lookup) empty() bool {
	return l.ID == "" && l.Email == "" && l.Password == ""
}

type Repository interface {
	FindOne(ctx context.Context, l Lookup) (*models.Account, error)
	FindByID(ctx context.Context, id string, withPassword bool) (*models.Account, error)
	Create(ctx context.Context, email, hashedPassword string) (*models.Account, error)
	UpdateByID(ctx context.Context, id string, u models.AccountUpdate) (*models.Account, error)
	List(ctx context.Context, q listquery.Query) ([]*models.Account, int, error)
}

const usernamePrefix = "user"

// newUsername returns "user" followed by 8 hex characters, which satisfies
// the 3..16 alphanumeric username rule.
func newUsername() (string, error) {
	s, err := common.MakeRandHexString(4)
	if err != nil {
		return "", err
	}
	return usernamePrefix + s, nil
}

var (
	errNotFound   = common.NewError(common.ErrorNotFound, "account not found")
	errEmailTaken = common.NewError(common.ErrorConflict, "email already registered")
	errEmptyQuery = errors.New("lookup has no criteria")
)

func dbError(err error) error {
	return common.Internal(fmt.Errorf("db error: %w", err))
}
