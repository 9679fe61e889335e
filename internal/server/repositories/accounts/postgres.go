package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/listquery"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

const uniqueViolation = "23505"

const publicColumns = `id, username, email, wallet_address, roles, features, capabilities,
		subscriptions, is_verified, created_at, updated_at, deleted_at`

// PostgresRepository stores accounts in the users table. Every call is
// bounded by timeout when it is positive.
type PostgresRepository struct {
	db      dbx.DBTX
	timeout time.Duration
}

func NewPostgresRepository(db dbx.DBTX, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout}
}

func columns(withPassword bool) string {
	if withPassword {
		return publicColumns + `, password`
	}
	return publicColumns
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, withPassword bool) (*models.Account, error) {
	var (
		a                           models.Account
		roles, features, caps, subs []byte
		deletedAt                   sql.NullTime
	)
	dest := []any{&a.ID, &a.Username, &a.Email, &a.WalletAddress, &roles, &features, &caps,
		&subs, &a.IsVerified, &a.CreatedAt, &a.UpdatedAt, &deletedAt}
	if withPassword {
		dest = append(dest, &a.Password)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw []byte
		dst any
	}{{roles, &a.Roles}, {features, &a.Features}, {caps, &a.Capabilities}, {subs, &a.Subscriptions}} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode account %s: %w", a.ID, err)
		}
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		a.DeletedAt = &t
	}
	ensureSets(&a)
	return &a, nil
}

// ensureSets replaces nil sets with empty ones so callers never see null.
func ensureSets(a *models.Account) {
	if a.Roles == nil {
		a.Roles = []models.Role{}
	}
	if a.Features == nil {
		a.Features = []string{}
	}
	if a.Capabilities == nil {
		a.Capabilities = []string{}
	}
	if a.Subscriptions == nil {
		a.Subscriptions = []models.Subscription{}
	}
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errEmailTaken
	}
	return dbError(err)
}

// args numbers positional parameters as they are appended.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

func (r *PostgresRepository) FindOne(ctx context.Context, l Lookup) (*models.Account, error) {
	if l.empty() {
		return nil, dbError(errEmptyQuery)
	}

	var (
		conds  []string
		params args
	)
	if l.ID != "" {
		if _, err := uuid.Parse(l.ID); err != nil {
			return nil, errNotFound
		}
		conds = append(conds, "id = "+params.add(l.ID))
	}
	if l.Email != "" {
		conds = append(conds, "email = "+params.add(l.Email))
	}
	if l.Password != "" {
		conds = append(conds, "password = "+params.add(l.Password))
	}
	if l.ExcludeID != "" {
		if _, err := uuid.Parse(l.ExcludeID); err == nil {
			conds = append(conds, "id <> "+params.add(l.ExcludeID))
		}
	}

	query := `SELECT ` + columns(l.WithPassword) + `
		FROM users
		WHERE ` + strings.Join(conds, " AND ") + `
		LIMIT 1`

	ctx, cancel := dbx.WithTimeout(ctx, r.timeout)
	defer cancel()

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, params...), l.WithPassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound
		}
		return nil, dbError(err)
	}
	return a, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string, withPassword bool) (*models.Account, error) {
	if id == "" {
		return nil, errNotFound
	}
	return r.FindOne(ctx, Lookup{ID: id, WithPassword: withPassword})
}

func (r *PostgresRepository) Create(ctx context.Context, email, hashedPassword string) (*models.Account, error) {
	username, err := newUsername()
	if err != nil {
		return nil, dbError(err)
	}

	query := `INSERT INTO users (username, email, password)
		VALUES ($1, $2, $3)
		RETURNING ` + publicColumns

	ctx, cancel := dbx.WithTimeout(ctx, r.timeout)
	defer cancel()

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, username, email, hashedPassword), false)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdateByID(ctx context.Context, id string, u models.AccountUpdate) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errNotFound
	}

	var (
		sets   []string
		params args
	)
	if u.Username != nil {
		sets = append(sets, "username = "+params.add(*u.Username))
	}
	if u.Email != nil {
		sets = append(sets, "email = "+params.add(*u.Email))
	}
	if u.Password != nil {
		sets = append(sets, "password = "+params.add(*u.Password))
	}
	if u.WalletAddress != nil {
		sets = append(sets, "wallet_address = "+params.add(*u.WalletAddress))
	}
	if u.Roles != nil {
		b, err := json.Marshal(u.Roles)
		if err != nil {
			return nil, dbError(err)
		}
		sets = append(sets, "roles = "+params.add(string(b))+"::jsonb")
	}
	if u.IsVerified != nil {
		sets = append(sets, "is_verified = "+params.add(*u.IsVerified))
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE users
		SET ` + strings.Join(sets, ", ") + `
		WHERE id = ` + params.add(id) + `
		RETURNING ` + publicColumns

	ctx, cancel := dbx.WithTimeout(ctx, r.timeout)
	defer cancel()

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, params...), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound
		}
		return nil, mapWriteError(err)
	}
	return a, nil
}

var sortColumns = map[listquery.SortField]string{
	listquery.SortByUsername:  "username",
	listquery.SortByEmail:     "email",
	listquery.SortByCreatedAt: "created_at",
	listquery.SortByUpdatedAt: "updated_at",
}

var filterColumns = map[listquery.Field]string{
	listquery.FieldID:            "id::text",
	listquery.FieldUsername:      "username",
	listquery.FieldEmail:         "email",
	listquery.FieldWalletAddress: "wallet_address",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause renders f as SQL. The returned clause is empty when f matches
// everything.
func whereClause(f listquery.Filter, params *args) (string, error) {
	switch {
	case f.Field != "":
		placeholders := make([]string, 0, len(f.Values))
		for _, v := range f.Values {
			placeholders = append(placeholders, params.add(v))
		}
		list := strings.Join(placeholders, ", ")
		if f.Field == listquery.FieldRoles {
			return "WHERE roles ?| ARRAY[" + list + "]::text[]", nil
		}
		col, ok := filterColumns[f.Field]
		if !ok {
			return "", fmt.Errorf("%w: %s", listquery.ErrUnknownField, f.Field)
		}
		return "WHERE " + col + " IN (" + list + ")", nil
	case f.Search != "":
		exact := params.add(f.Search)
		like := params.add("%" + likeEscaper.Replace(f.Search) + "%")
		return "WHERE (id::text = " + exact + " OR username ILIKE " + like +
			" OR email ILIKE " + like + " OR wallet_address = " + exact + ")", nil
	default:
		return "", nil
	}
}

func (r *PostgresRepository) List(ctx context.Context, q listquery.Query) ([]*models.Account, int, error) {
	var params args
	where, err := whereClause(q.Filter, &params)
	if err != nil {
		return nil, 0, dbError(err)
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = sortColumns[listquery.SortByCreatedAt]
	}
	dir := "DESC"
	if q.Sort == listquery.Asc {
		dir = "ASC"
	}

	ctx, cancel := dbx.WithTimeout(ctx, r.timeout)
	defer cancel()

	var total int
	countQuery := `SELECT count(*) FROM users ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, params...).Scan(&total); err != nil {
		return nil, 0, dbError(err)
	}

	pageParams := append(args{}, params...)
	query := `SELECT ` + publicColumns + `
		FROM users ` + where + `
		ORDER BY ` + col + ` ` + dir + `, id ` + dir + `
		LIMIT ` + pageParams.add(q.PerPage) + ` OFFSET ` + pageParams.add(q.Offset())

	rows, err := r.db.QueryContext(ctx, query, pageParams...)
	if err != nil {
		return nil, 0, dbError(err)
	}
	defer rows.Close()

	result := make([]*models.Account, 0, q.PerPage)
	for rows.Next() {
		a, err := scanAccount(rows, false)
		if err != nil {
			return nil, 0, dbError(err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbError(err)
	}
	return result, total, nil
}
