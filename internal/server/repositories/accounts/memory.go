package accounts

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/accounts/internal/server/listquery"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

type memoryRecord struct {
	account models.Account
	seq     int
}

// MemoryRepository keeps accounts in process memory. It enforces the same
// email uniqueness as the users table index.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	seq     int
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*memoryRecord), now: time.Now}
}

// SetClock replaces the time source. Used by tests that need ordered
// timestamps.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func cloneAccount(a *models.Account, withPassword bool) *models.Account {
	c := *a
	c.Roles = slices.Clone(a.Roles)
	c.Features = slices.Clone(a.Features)
	c.Capabilities = slices.Clone(a.Capabilities)
	c.Subscriptions = slices.Clone(a.Subscriptions)
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		c.DeletedAt = &t
	}
	if !withPassword {
		c.Password = ""
	}
	ensureSets(&c)
	return &c
}

func (l Lookup) matches(a *models.Account) bool {
	if l.ID != "" && a.ID != l.ID {
		return false
	}
	if l.Email != "" && a.Email != l.Email {
		return false
	}
	if l.Password != "" && a.Password != l.Password {
		return false
	}
	if l.ExcludeID != "" && a.ID == l.ExcludeID {
		return false
	}
	return true
}

func (r *MemoryRepository) FindOne(ctx context.Context, l Lookup) (*models.Account, error) {
	if l.empty() {
		return nil, dbError(errEmptyQuery)
	}
	if err := ctx.Err(); err != nil {
		return nil, dbError(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if l.ID != "" {
		rec, ok := r.records[l.ID]
		if !ok || !l.matches(&rec.account) {
			return nil, errNotFound
		}
		return cloneAccount(&rec.account, l.WithPassword), nil
	}
	for _, rec := range r.records {
		if l.matches(&rec.account) {
			return cloneAccount(&rec.account, l.WithPassword), nil
		}
	}
	return nil, errNotFound
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string, withPassword bool) (*models.Account, error) {
	if id == "" {
		return nil, errNotFound
	}
	return r.FindOne(ctx, Lookup{ID: id, WithPassword: withPassword})
}

// emailTakenLocked reports whether another record holds email. r.mu must be held.
func (r *MemoryRepository) emailTakenLocked(email, exceptID string) bool {
	for id, rec := range r.records {
		if id != exceptID && strings.EqualFold(rec.account.Email, email) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Create(ctx context.Context, email, hashedPassword string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, dbError(err)
	}
	username, err := newUsername()
	if err != nil {
		return nil, dbError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTakenLocked(email, "") {
		return nil, errEmailTaken
	}

	now := r.now().UTC()
	r.seq++
	rec := &memoryRecord{
		account: models.Account{
			ID:        uuid.NewString(),
			Username:  username,
			Email:     email,
			Password:  hashedPassword,
			CreatedAt: now,
			UpdatedAt: now,
		},
		seq: r.seq,
	}
	ensureSets(&rec.account)
	r.records[rec.account.ID] = rec

	return cloneAccount(&rec.account, false), nil
}

func (r *MemoryRepository) UpdateByID(ctx context.Context, id string, u models.AccountUpdate) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, dbError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, errNotFound
	}
	if u.Email != nil && r.emailTakenLocked(*u.Email, id) {
		return nil, errEmailTaken
	}

	a := &rec.account
	if u.Username != nil {
		a.Username = *u.Username
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.Password != nil {
		a.Password = *u.Password
	}
	if u.WalletAddress != nil {
		a.WalletAddress = *u.WalletAddress
	}
	if u.Roles != nil {
		a.Roles = slices.Clone(u.Roles)
	}
	if u.IsVerified != nil {
		a.IsVerified = *u.IsVerified
	}
	a.UpdatedAt = r.now().UTC()

	return cloneAccount(a, false), nil
}

func filterMatches(f listquery.Filter, a *models.Account) bool {
	switch {
	case f.Field != "":
		switch f.Field {
		case listquery.FieldID:
			return slices.Contains(f.Values, a.ID)
		case listquery.FieldUsername:
			return slices.Contains(f.Values, a.Username)
		case listquery.FieldEmail:
			return slices.Contains(f.Values, a.Email)
		case listquery.FieldWalletAddress:
			return slices.Contains(f.Values, a.WalletAddress)
		case listquery.FieldRoles:
			for _, role := range a.Roles {
				if slices.Contains(f.Values, string(role)) {
					return true
				}
			}
		}
		return false
	case f.Search != "":
		term := strings.ToLower(f.Search)
		return a.ID == f.Search ||
			strings.Contains(strings.ToLower(a.Username), term) ||
			strings.Contains(strings.ToLower(a.Email), term) ||
			a.WalletAddress == f.Search
	default:
		return true
	}
}

func lessBy(field listquery.SortField, a, b *memoryRecord) int {
	switch field {
	case listquery.SortByUsername:
		return strings.Compare(a.account.Username, b.account.Username)
	case listquery.SortByEmail:
		return strings.Compare(a.account.Email, b.account.Email)
	case listquery.SortByUpdatedAt:
		return a.account.UpdatedAt.Compare(b.account.UpdatedAt)
	default:
		return a.account.CreatedAt.Compare(b.account.CreatedAt)
	}
}

func (r *MemoryRepository) List(ctx context.Context, q listquery.Query) ([]*models.Account, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, dbError(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*memoryRecord, 0, len(r.records))
	for _, rec := range r.records {
		if filterMatches(q.Filter, &rec.account) {
			matched = append(matched, rec)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		c := lessBy(q.SortBy, matched[i], matched[j])
		if c == 0 {
			c = matched[i].seq - matched[j].seq
		}
		if q.Sort == listquery.Asc {
			return c < 0
		}
		return c > 0
	})

	total := len(matched)
	start := min(max(q.Offset(), 0), total)
	end := min(start+max(q.PerPage, 0), total)

	result := make([]*models.Account, 0, end-start)
	for _, rec := range matched[start:end] {
		result = append(result, cloneAccount(&rec.account, false))
	}
	return result, total, nil
}
