package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/cryptox"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/listquery"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/systemlogs"
)

const (
	goodPassword  = "Str0ng!pass"
	otherPassword = "0ther!Pass"
)

type fixture struct {
	svc     *AccountService
	manager *repomanager.MemoryRepositoryManager
	issuer  *auth.Issuer
}

func newFixture(t *testing.T, scheme string) *fixture {
	t.Helper()
	codec, err := cryptox.NewCodec(scheme, []byte("pepper"))
	require.NoError(t, err)
	m := repomanager.NewMemoryRepositoryManager()
	issuer := auth.NewIssuer([]byte("jwt-secret"), 7*24*time.Hour)
	return &fixture{svc: NewAccountService(nil, m, codec, issuer), manager: m, issuer: issuer}
}

func (f *fixture) verify(t *testing.T, id string) {
	t.Helper()
	yes := true
	_, err := f.manager.Accounts(nil).UpdateByID(context.Background(), id, models.AccountUpdate{IsVerified: &yes})
	require.NoError(t, err)
}

func (f *fixture) stored(t *testing.T, id string) *models.Account {
	t.Helper()
	a, err := f.manager.Accounts(nil).FindByID(context.Background(), id, true)
	require.NoError(t, err)
	return a
}

var schemes = []string{cryptox.SchemeHMAC, cryptox.SchemeArgon2}

func TestRegister(t *testing.T) {
	for _, scheme := range schemes {
		t.Run(scheme, func(t *testing.T) {
			f := newFixture(t, scheme)
			ctx := context.Background()

			a, err := f.svc.Register(ctx, "  A@x.com ", goodPassword)
			require.NoError(t, err)
			assert.Equal(t, "a@x.com", a.Email)
			assert.Empty(t, a.Password)
			assert.False(t, a.IsVerified)
			assert.Empty(t, a.Roles)

			stored := f.stored(t, a.ID)
			assert.NotEqual(t, goodPassword, stored.Password)
			assert.NotEmpty(t, stored.Password)

			_, err = f.svc.Register(ctx, "a@X.com", otherPassword)
			require.ErrorIs(t, err, common.ErrorConflict)
			assert.Equal(t, "email already registered", common.PublicMessage(err))
		})
	}
}

func TestLogin(t *testing.T) {
	for _, scheme := range schemes {
		t.Run(scheme, func(t *testing.T) {
			f := newFixture(t, scheme)
			ctx := context.Background()

			a, err := f.svc.Register(ctx, "alice@x.com", goodPassword)
			require.NoError(t, err)

			_, err = f.svc.Login(ctx, "alice@x.com", goodPassword)
			require.ErrorIs(t, err, common.ErrorBadRequest)
			assert.Equal(t, "unverified user", common.PublicMessage(err))

			f.verify(t, a.ID)

			res, err := f.svc.Login(ctx, "ALICE@x.com", goodPassword)
			require.NoError(t, err)
			assert.Equal(t, a.ID, res.Account.ID)
			assert.Empty(t, res.Account.Password)

			claims, err := f.issuer.Verify(res.Token)
			require.NoError(t, err)
			assert.Equal(t, a.ID, claims.AccountID)
			assert.Equal(t, "alice@x.com", claims.Email)
		})
	}
}

func TestLogin_EnumerationSafe(t *testing.T) {
	for _, scheme := range schemes {
		t.Run(scheme, func(t *testing.T) {
			f := newFixture(t, scheme)
			ctx := context.Background()

			a, err := f.svc.Register(ctx, "alice@x.com", goodPassword)
			require.NoError(t, err)
			f.verify(t, a.ID)

			_, wrongPass := f.svc.Login(ctx, "alice@x.com", otherPassword)
			_, noEmail := f.svc.Login(ctx, "nobody@x.com", goodPassword)

			require.ErrorIs(t, wrongPass, common.ErrorNotFound)
			require.ErrorIs(t, noEmail, common.ErrorNotFound)
			assert.Equal(t, wrongPass.Error(), noEmail.Error())
			assert.Equal(t, "wrong email or password", common.PublicMessage(wrongPass))
		})
	}
}

func TestLogin_TokenLivesSevenDays(t *testing.T) {
	f := newFixture(t, cryptox.SchemeHMAC)
	ctx := context.Background()

	a, _ := f.svc.Register(ctx, "alice@x.com", goodPassword)
	f.verify(t, a.ID)

	res, err := f.svc.Login(ctx, "alice@x.com", goodPassword)
	require.NoError(t, err)

	claims, err := f.issuer.Verify(res.Token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestMe(t *testing.T) {
	f := newFixture(t, cryptox.SchemeHMAC)
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, "alice@x.com", goodPassword)

	got, err := f.svc.Me(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Empty(t, got.Password)

	_, err = f.svc.Me(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestChangePassword(t *testing.T) {
	for _, scheme := range schemes {
		t.Run(scheme, func(t *testing.T) {
			f := newFixture(t, scheme)
			ctx := context.Background()
			a, _ := f.svc.Register(ctx, "alice@x.com", goodPassword)
			f.verify(t, a.ID)
			before := f.stored(t, a.ID).Password

			_, err := f.svc.ChangePassword(ctx, a.ID, "wrong-Old1!", otherPassword)
			require.ErrorIs(t, err, common.ErrorBadRequest)
			assert.Equal(t, "incorrect password", common.PublicMessage(err))
			assert.Equal(t, before, f.stored(t, a.ID).Password)

			_, err = f.svc.ChangePassword(ctx, a.ID, goodPassword, otherPassword)
			require.NoError(t, err)
			assert.NotEqual(t, before, f.stored(t, a.ID).Password)

			_, err = f.svc.Login(ctx, "alice@x.com", goodPassword)
			assert.ErrorIs(t, err, common.ErrorNotFound)
			_, err = f.svc.Login(ctx, "alice@x.com", otherPassword)
			assert.NoError(t, err)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, cryptox.SchemeHMAC)
	ctx := context.Background()
	alice, _ := f.svc.Register(ctx, "alice@x.com", goodPassword)
	_, _ = f.svc.Register(ctx, "bob@y.com", goodPassword)

	got, err := f.svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: "alice01", Email: "Alice@X.com", WalletAddress: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "alice01", got.Username)
	assert.Equal(t, "alice@x.com", got.Email)
	assert.Equal(t, "0xabc", got.WalletAddress)

	_, err = f.svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: "alice01", Email: "BOB@y.com"})
	require.ErrorIs(t, err, common.ErrorConflict)

	_, err = f.svc.UpdateProfile(ctx, "missing", ProfileUpdate{Username: "ghost", Email: "ghost@x.com"})
	require.ErrorIs(t, err, common.ErrorBadRequest)
	assert.Equal(t, "update failed", common.PublicMessage(err))
}

func TestAssignRoles_Overwrites(t *testing.T) {
	f := newFixture(t, cryptox.SchemeHMAC)
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, "alice@x.com", goodPassword)

	_, err := f.svc.AssignRoles(ctx, a.ID, []models.Role{models.RoleAdmin, models.RoleTester})
	require.NoError(t, err)

	got, err := f.svc.AssignRoles(ctx, a.ID, []models.Role{models.RoleAirdropFree})
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleAirdropFree}, got.Roles)
	assert.False(t, got.HasRole(models.RoleAdmin))

	_, err = f.svc.AssignRoles(ctx, a.ID, []models.Role{"superuser"})
	assert.ErrorIs(t, err, common.ErrorBadRequest)
	_, err = f.svc.AssignRoles(ctx, a.ID, nil)
	assert.ErrorIs(t, err, common.ErrorBadRequest)
	_, err = f.svc.AssignRoles(ctx, a.ID, []models.Role{models.RoleTester, models.RoleTester})
	assert.ErrorIs(t, err, common.ErrorBadRequest)

	_, err = f.svc.AssignRoles(ctx, "missing", []models.Role{models.RoleTester})
	require.ErrorIs(t, err, common.ErrorBadRequest)
	assert.Equal(t, "update roles failed", common.PublicMessage(err))
}

func TestList(t *testing.T) {
	f := newFixture(t, cryptox.SchemeHMAC)
	ctx := context.Background()
	mem := f.manager.Accounts(nil).(*accounts.MemoryRepository)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	mem.SetClock(func() time.Time { n++; return t0.Add(time.Duration(n) * time.Minute) })

	var ids []string
	for i := 1; i <= 25; i++ {
		a, err := f.svc.Register(ctx, fmt.Sprintf("member%02d@x.com", i), goodPassword)
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	items, page, err := f.svc.List(ctx, listquery.Params{SortBy: "created_at", Sort: "asc", Page: "2", PerPage: "10"})
	require.NoError(t, err)
	assert.Equal(t, models.Pagination{Page: 2, PerPage: 10, TotalCount: 25, TotalPages: 3}, page)
	require.Len(t, items, 10)
	for i, a := range items {
		assert.Equal(t, ids[10+i], a.ID)
	}

	items, page, err = f.svc.List(ctx, listquery.Params{Page: "9223372036854775807", PerPage: "10"})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 25, page.TotalCount)
	assert.Equal(t, listquery.MaxPage, page.Page)

	for _, bad := range []string{"0", "abc", ""} {
		_, page, err = f.svc.List(ctx, listquery.Params{Page: bad})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 10, page.PerPage)
	}

	items, page, err = f.svc.List(ctx, listquery.Params{Keyword: "email:member01@x.com,member02@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Len(t, items, 2)

	items, _, err = f.svc.List(ctx, listquery.Params{Keyword: "MEMBER1", PerPage: "50"})
	require.NoError(t, err)
	assert.Len(t, items, 10)

	_, _, err = f.svc.List(ctx, listquery.Params{Keyword: "password:x"})
	assert.ErrorIs(t, err, common.ErrorBadRequest)
}

func TestBootstrapAdmins(t *testing.T) {
	f := newFixture(t, cryptox.SchemeHMAC)
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, "root@x.com", goodPassword)
	_, _ = f.svc.AssignRoles(ctx, a.ID, []models.Role{models.RoleTester})

	n, err := f.svc.BootstrapAdmins(ctx, []string{"ROOT@x.com", "missing@x.com", ""})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := f.svc.Me(ctx, a.ID)
	assert.ElementsMatch(t, []models.Role{models.RoleTester, models.RoleAdmin}, got.Roles)

	n, err = f.svc.BootstrapAdmins(ctx, []string{"root@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// --- store failures ---

type failingAccounts struct{ err error }

func (f failingAccounts) FindOne(context.Context, accounts.Lookup) (*models.Account, error) {
	return nil, f.err
}
func (f failingAccounts) FindByID(context.Context, string, bool) (*models.Account, error) {
	return nil, f.err
}
func (f failingAccounts) Create(context.Context, string, string) (*models.Account, error) {
	return nil, f.err
}
func (f failingAccounts) UpdateByID(context.Context, string, models.AccountUpdate) (*models.Account, error) {
	return nil, f.err
}
func (f failingAccounts) List(context.Context, listquery.Query) ([]*models.Account, int, error) {
	return nil, 0, f.err
}

type failingManager struct{ repo failingAccounts }

func (m failingManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m failingManager) Accounts(dbx.DBTX) accounts.Repository         { return m.repo }
func (m failingManager) SystemLogs(dbx.DBTX) systemlogs.Repository     { return nil }

func TestStoreFailuresSurfaceAsInternal(t *testing.T) {
	codec, _ := cryptox.NewCodec(cryptox.SchemeHMAC, []byte("pepper"))
	storeErr := common.Internal(errors.New("db error: connection reset"))
	svc := NewAccountService(nil, failingManager{failingAccounts{storeErr}}, codec, auth.NewIssuer([]byte("k"), time.Hour))
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", goodPassword)
	assert.ErrorIs(t, err, common.ErrorInternal)
	_, err = svc.Login(ctx, "a@x.com", goodPassword)
	assert.ErrorIs(t, err, common.ErrorInternal)
	_, err = svc.Me(ctx, "id")
	assert.ErrorIs(t, err, common.ErrorInternal)
	_, err = svc.UpdateProfile(ctx, "id", ProfileUpdate{Email: "a@x.com"})
	assert.ErrorIs(t, err, common.ErrorInternal)
	_, err = svc.ChangePassword(ctx, "id", goodPassword, otherPassword)
	assert.ErrorIs(t, err, common.ErrorInternal)
	_, err = svc.AssignRoles(ctx, "id", []models.Role{models.RoleAdmin})
	assert.ErrorIs(t, err, common.ErrorInternal)
	_, _, err = svc.List(ctx, listquery.Params{})
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, "internal error", common.PublicMessage(err))
}
