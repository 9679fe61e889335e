package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/listquery"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

const testID = "0b8f1c3e-2d7a-4c55-9a61-5f3e2b1d9c01"

var accountCols = []string{"id", "username", "email", "wallet_address", "roles", "features", "capabilities",
	"subscriptions", "is_verified", "created_at", "updated_at", "deleted_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db, time.Second), mock, db
}

func accountRow(rows *sqlmock.Rows, id, username, email string, roles string) *sqlmock.Rows {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return rows.AddRow(id, username, email, "", []byte(roles), []byte(`[]`), []byte(`[]`),
		[]byte(`[]`), true, ts, ts, nil)
}

func TestFindOne_ByEmailWithPassword(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*deleted_at,\s*password\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s+LIMIT\s+1$`

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows(append(accountCols, "password")).
		AddRow(testID, "user0a1b2c3d", "alice@x.com", "", []byte(`[]`), []byte(`[]`), []byte(`[]`),
			[]byte(`[]`), false, ts, ts, ts, "$argon2id$digest")
	mock.ExpectQuery(q).
		WithArgs("alice@x.com").
		WillReturnRows(rows)

	got, err := repo.FindOne(context.Background(), Lookup{Email: "alice@x.com", WithPassword: true})
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$digest", got.Password)
	assert.False(t, got.IsVerified)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOne_ByEmailAndDigest(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*deleted_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s+AND\s+password\s*=\s*\$2\s+LIMIT\s+1$`

	rows := accountRow(sqlmock.NewRows(accountCols), testID, "user0a1b2c3d", "alice@x.com", `["admin","tester"]`)
	mock.ExpectQuery(q).
		WithArgs("alice@x.com", "$hmac-sha256$abc").
		WillReturnRows(rows)

	got, err := repo.FindOne(context.Background(), Lookup{Email: "alice@x.com", Password: "$hmac-sha256$abc"})
	require.NoError(t, err)
	assert.Equal(t, testID, got.ID)
	assert.Equal(t, []models.Role{models.RoleAdmin, models.RoleTester}, got.Roles)
	assert.Empty(t, got.Password)
	assert.NotNil(t, got.Subscriptions)
	assert.Nil(t, got.DeletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOne_ExcludeID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s+AND\s+id\s*<>\s*\$2\s+LIMIT\s+1$`

	mock.ExpectQuery(q).
		WithArgs("bob@y.com", testID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindOne(context.Background(), Lookup{Email: "bob@y.com", ExcludeID: testID})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindOne_EmptyLookup(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.FindOne(context.Background(), Lookup{})
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestFindByID_InvalidUUIDIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.FindByID(context.Background(), "not-a-uuid", false)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+id\s*=\s*\$1`).
		WithArgs(testID).
		WillReturnError(errors.New("db down"))

	_, err := repo.FindByID(context.Background(), testID, false)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, "internal error", common.PublicMessage(err))
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*email,\s*password\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,`

	rows := accountRow(sqlmock.NewRows(accountCols), testID, "user0a1b2c3d", "alice@x.com", `[]`)
	mock.ExpectQuery(q).
		WithArgs(sqlmock.AnyArg(), "alice@x.com", "digest").
		WillReturnRows(rows)

	got, err := repo.Create(context.Background(), "alice@x.com", "digest")
	require.NoError(t, err)
	assert.Equal(t, testID, got.ID)
	assert.Empty(t, got.Roles)
	assert.NotNil(t, got.Roles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolationIsConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WithArgs(sqlmock.AnyArg(), "alice@x.com", "digest").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_key"})

	_, err := repo.Create(context.Background(), "alice@x.com", "digest")
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WithArgs(sqlmock.AnyArg(), "alice@x.com", "digest").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "alice@x.com", "digest")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestUpdateByID_PartialSet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+username\s*=\s*\$1,\s*wallet_address\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$3\s+RETURNING\s+id,`

	rows := accountRow(sqlmock.NewRows(accountCols), testID, "alice", "alice@x.com", `[]`)
	mock.ExpectQuery(q).
		WithArgs("alice", "0xabc", testID).
		WillReturnRows(rows)

	username, wallet := "alice", "0xabc"
	got, err := repo.UpdateByID(context.Background(), testID, models.AccountUpdate{Username: &username, WalletAddress: &wallet})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateByID_Roles(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+roles\s*=\s*\$1::jsonb,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$2`

	rows := accountRow(sqlmock.NewRows(accountCols), testID, "alice", "alice@x.com", `["tester"]`)
	mock.ExpectQuery(q).
		WithArgs(`["tester"]`, testID).
		WillReturnRows(rows)

	got, err := repo.UpdateByID(context.Background(), testID, models.AccountUpdate{Roles: []models.Role{models.RoleTester}})
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleTester}, got.Roles)
}

func TestUpdateByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+users`).
		WillReturnError(sql.ErrNoRows)

	email := "a@x.com"
	_, err := repo.UpdateByID(context.Background(), testID, models.AccountUpdate{Email: &email})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestList_InFilter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+users\s+WHERE\s+email\s+IN\s+\(\$1,\s*\$2\)$`).
		WithArgs("alice@x.com", "bob@y.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows(accountCols)
	accountRow(rows, testID, "alice", "alice@x.com", `[]`)
	accountRow(rows, "7d0b4a9e-8f55-4b1c-8a3d-2e6f9c0b1a22", "bob", "bob@y.com", `[]`)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s+IN\s+\(\$1,\s*\$2\)\s+ORDER\s+BY\s+email\s+ASC,\s*id\s+ASC\s+LIMIT\s+\$3\s+OFFSET\s+\$4$`).
		WithArgs("alice@x.com", "bob@y.com", 10, 0).
		WillReturnRows(rows)

	q := listquery.Query{
		Filter:  listquery.Filter{Field: listquery.FieldEmail, Values: []string{"alice@x.com", "bob@y.com"}},
		SortBy:  listquery.SortByEmail,
		Sort:    listquery.Asc,
		Page:    1,
		PerPage: 10,
	}
	got, total, err := repo.List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, "bob@y.com", got[1].Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_SearchEscapesLike(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	where := `WHERE\s+\(id::text\s*=\s*\$1\s+OR\s+username\s+ILIKE\s+\$2\s+OR\s+email\s+ILIKE\s+\$2\s+OR\s+wallet_address\s*=\s*\$1\)`
	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+users\s+`+where).
		WithArgs("a_l%", `%a\_l\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*`+where+`\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC\s+LIMIT\s+\$3\s+OFFSET\s+\$4$`).
		WithArgs("a_l%", `%a\_l\%%`, 10, 10).
		WillReturnRows(sqlmock.NewRows(accountCols))

	q := listquery.Query{Filter: listquery.Filter{Search: "a_l%"}, SortBy: listquery.SortByCreatedAt, Sort: listquery.Desc, Page: 2, PerPage: 10}
	got, total, err := repo.List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_RolesFilter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+users\s+WHERE\s+roles\s+\?\|\s+ARRAY\[\$1\]::text\[\]$`).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+roles\s+\?\|`).
		WithArgs("admin", 10, 0).
		WillReturnRows(sqlmock.NewRows(accountCols))

	q := listquery.Query{Filter: listquery.Filter{Field: listquery.FieldRoles, Values: []string{"admin"}}, Page: 1, PerPage: 10}
	_, _, err := repo.List(context.Background(), q)
	require.NoError(t, err)
}

func TestList_HugePageSendsPositiveOffset(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q, err := listquery.Build(listquery.Params{Page: "9223372036854775807", PerPage: "10"})
	require.NoError(t, err)

	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*LIMIT\s+\$1\s+OFFSET\s+\$2$`).
		WithArgs(10, (listquery.MaxPage-1)*10).
		WillReturnRows(sqlmock.NewRows(accountCols))

	got, total, err := repo.List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_CountError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+users`).
		WillReturnError(errors.New("db down"))

	_, _, err := repo.List(context.Background(), listquery.Query{Page: 1, PerPage: 10})
	assert.ErrorIs(t, err, common.ErrorInternal)
}
