// Package services contains server-side business logic. This file implements
// AccountService, the account workflow: registration, login, profile and
// password changes, role assignment and listing.
//
// Every method fails fast on the first violated rule and returns a
// *common.Error whose Message is safe to show to the caller.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/cryptox"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/listquery"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
)

var (
	errEmailTaken        = common.NewError(common.ErrorConflict, "email already registered")
	errWrongCredentials  = common.NewError(common.ErrorNotFound, "wrong email or password")
	errUnverified        = common.NewError(common.ErrorBadRequest, "unverified user")
	errAccountNotFound   = common.NewError(common.ErrorNotFound, "account not found")
	errUpdateFailed      = common.NewError(common.ErrorBadRequest, "update failed")
	errIncorrectPassword = common.NewError(common.ErrorBadRequest, "incorrect password")
	errUpdatePassword    = common.NewError(common.ErrorBadRequest, "update password failed")
	errUpdateRoles       = common.NewError(common.ErrorBadRequest, "update roles failed")
	errInvalidRoles      = common.NewError(common.ErrorBadRequest, "roles must be a non-empty set of known roles")
)

// LoginResult is the outcome of a successful Login.
type LoginResult struct {
	Account *models.Account
	Token   string
}

// ProfileUpdate is the user-editable part of an account.
type ProfileUpdate struct {
	Username      string
	Email         string
	WalletAddress string
}

// AccountService runs the account workflow against the repositories vended
// by repomanager. Each method is an independent request; no state is kept
// between calls.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *cryptox.Codec
	issuer      *auth.Issuer
}

// NewAccountService wires the workflow. db may be nil for in-memory managers.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, codec *cryptox.Codec, issuer *auth.Issuer) *AccountService {
	return &AccountService{db: db, repomanager: m, codec: codec, issuer: issuer}
}

func (s *AccountService) repo() accounts.Repository {
	return s.repomanager.Accounts(s.db)
}

// inTx runs fn in one transaction when a database is configured, and
// directly against the repository otherwise.
func (s *AccountService) inTx(ctx context.Context, fn func(ctx context.Context, repo accounts.Repository) error) error {
	if s.db == nil {
		return fn(ctx, s.repo())
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.repomanager.Accounts(tx))
	})
	var domainErr *common.Error
	if err != nil && !errors.As(err, &domainErr) {
		return common.Internal(fmt.Errorf("db error: %w", err))
	}
	return err
}

// Register creates an unverified account for email. The password
// confirmation is checked by the caller.
func (s *AccountService) Register(ctx context.Context, email, password string) (*models.Account, error) {
	email = common.NormalizeEmail(email)
	repo := s.repo()

	// Fast fail only; the unique index on lower(email) is the real guarantee.
	if _, err := repo.FindOne(ctx, accounts.Lookup{Email: email}); err == nil {
		return nil, errEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	digest, err := s.codec.Hash(password)
	if err != nil {
		return nil, common.Internal(err)
	}

	a, err := repo.Create(ctx, email, digest)
	if err != nil {
		return nil, err
	}
	return a.WithoutPassword(), nil
}

// Login checks credentials and issues a token. Unknown email and wrong
// password fail identically.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = common.NormalizeEmail(email)

	a, err := s.matchPassword(ctx, accounts.Lookup{Email: email}, password)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errWrongCredentials
		}
		return nil, err
	}
	if a == nil {
		return nil, errWrongCredentials
	}
	if !a.IsVerified {
		return nil, errUnverified
	}

	token, err := s.issuer.Issue(claimsFor(a))
	if err != nil {
		return nil, common.Internal(err)
	}
	return &LoginResult{Account: a.WithoutPassword(), Token: token}, nil
}

// matchPassword returns the account selected by l if password matches its
// digest, nil if it does not, or the lookup error. With a deterministic
// codec the digest takes part in the lookup itself.
func (s *AccountService) matchPassword(ctx context.Context, l accounts.Lookup, password string) (*models.Account, error) {
	repo := s.repo()

	if s.codec.Deterministic() {
		digest, err := s.codec.Hash(password)
		if err != nil {
			return nil, common.Internal(err)
		}
		l.Password = digest
		a, err := repo.FindOne(ctx, l)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return a, err
	}

	l.WithPassword = true
	a, err := repo.FindOne(ctx, l)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Spend the hashing cost anyway so a missing email is not
			// faster than a wrong password.
			_, _ = s.codec.Hash(password)
			return nil, nil
		}
		return nil, err
	}
	ok, err := s.codec.Verify(a.Password, password)
	if err != nil {
		return nil, common.Internal(err)
	}
	if !ok {
		return nil, nil
	}
	return a.WithoutPassword(), nil
}

// Me returns the account with id, without its digest.
func (s *AccountService) Me(ctx context.Context, id string) (*models.Account, error) {
	a, err := s.repo().FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

// UpdateProfile replaces username, email and wallet address of account id.
// The email may only be taken by id itself.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (*models.Account, error) {
	email := common.NormalizeEmail(p.Email)
	repo := s.repo()

	if _, err := repo.FindOne(ctx, accounts.Lookup{Email: email, ExcludeID: id}); err == nil {
		return nil, errEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	username := strings.TrimSpace(p.Username)
	a, err := repo.UpdateByID(ctx, id, models.AccountUpdate{
		Username:      &username,
		Email:         &email,
		WalletAddress: &p.WalletAddress,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errUpdateFailed
		}
		return nil, err
	}
	return a, nil
}

// ChangePassword replaces the digest of account id after checking
// oldPassword. The confirmation of newPassword is checked by the caller.
func (s *AccountService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) (*models.Account, error) {
	if id == "" {
		return nil, errIncorrectPassword
	}
	a, err := s.matchPassword(ctx, accounts.Lookup{ID: id}, oldPassword)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errIncorrectPassword
		}
		return nil, err
	}
	if a == nil {
		return nil, errIncorrectPassword
	}

	digest, err := s.codec.Hash(newPassword)
	if err != nil {
		return nil, common.Internal(err)
	}

	updated, err := s.repo().UpdateByID(ctx, a.ID, models.AccountUpdate{Password: &digest})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errUpdatePassword
		}
		return nil, err
	}
	return updated, nil
}

// AssignRoles overwrites the roles of account id.
func (s *AccountService) AssignRoles(ctx context.Context, id string, roles []models.Role) (*models.Account, error) {
	if !validRoleSet(roles) {
		return nil, errInvalidRoles
	}

	a, err := s.repo().UpdateByID(ctx, id, models.AccountUpdate{Roles: roles})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errUpdateRoles
		}
		return nil, err
	}
	return a, nil
}

func validRoleSet(roles []models.Role) bool {
	if len(roles) == 0 {
		return false
	}
	seen := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			return false
		}
		if _, dup := seen[r]; dup {
			return false
		}
		seen[r] = struct{}{}
	}
	return true
}

// List returns one page of accounts matching p and its pagination.
func (s *AccountService) List(ctx context.Context, p listquery.Params) ([]*models.Account, models.Pagination, error) {
	q, err := listquery.Build(p)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	items, total, err := s.repo().List(ctx, q)
	if err != nil {
		if errors.Is(err, listquery.ErrUnknownField) {
			return nil, models.Pagination{}, common.NewError(common.ErrorBadRequest, err.Error())
		}
		return nil, models.Pagination{}, err
	}
	return items, models.NewPagination(q.Page, q.PerPage, total), nil
}

// BootstrapAdmins adds the admin role to every existing account listed in
// emails and returns how many accounts changed. Missing accounts are skipped.
func (s *AccountService) BootstrapAdmins(ctx context.Context, emails []string) (int, error) {
	granted := 0
	err := s.inTx(ctx, func(ctx context.Context, repo accounts.Repository) error {
		for _, email := range emails {
			email = common.NormalizeEmail(email)
			if email == "" {
				continue
			}
			a, err := repo.FindOne(ctx, accounts.Lookup{Email: email})
			if err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					continue
				}
				return err
			}
			if a.HasRole(models.RoleAdmin) {
				continue
			}
			roles := append(a.Roles, models.RoleAdmin)
			if _, err := repo.UpdateByID(ctx, a.ID, models.AccountUpdate{Roles: roles}); err != nil {
				return err
			}
			granted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return granted, nil
}

func claimsFor(a *models.Account) auth.Claims {
	return auth.Claims{
		AccountID: a.ID,
		Email:     a.Email,
		Username:  a.Username,
		Roles:     a.RoleNames(),
	}
}
