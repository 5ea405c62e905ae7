package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/store"
)

const storeTable = "account"

// accountRow is the stored shape; the hash never leaves this file.
type accountRow struct {
	Account
	PasswordHash string `json:"password_hash,omitempty"`
}

type accountRepoStore struct {
	rows *store.Table[accountRow]
	now  func() time.Time
}

func NewAccountRepoStore(client store.Client) Repository {
	return &accountRepoStore{rows: store.NewTable[accountRow](client, storeTable), now: time.Now}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrEmailTaken
	}
	return err
}

func (r *accountRepoStore) Create(ctx context.Context, a *Account, passwordHash string) error {
	a.ID = uuid.New()
	a.Email = strings.ToLower(a.Email)
	a.CreatedAt = r.now().UTC()
	a.UpdatedAt = a.CreatedAt
	row := &accountRow{Account: *a, PasswordHash: passwordHash}
	if err := r.rows.Insert(ctx, row); err != nil {
		return mapStoreErr(err)
	}
	*a = row.Account
	return nil
}

func (r *accountRepoStore) get(ctx context.Context, eq store.Filter) (*accountRow, error) {
	row, err := r.rows.Get(ctx, eq)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return row, nil
}

func (r *accountRepoStore) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row, err := r.get(ctx, store.Filter{"id": id.String()})
	if err != nil {
		return nil, err
	}
	return &row.Account, nil
}

func (r *accountRepoStore) GetByEmail(ctx context.Context, email string) (*Account, string, error) {
	row, err := r.get(ctx, store.Filter{"email": strings.ToLower(email)})
	if err != nil {
		return nil, "", err
	}
	return &row.Account, row.PasswordHash, nil
}

func (r *accountRepoStore) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	row, err := r.get(ctx, store.Filter{"id": id.String()})
	if err != nil {
		return "", err
	}
	return row.PasswordHash, nil
}

func (r *accountRepoStore) Update(ctx context.Context, a *Account) error {
	a.Email = strings.ToLower(a.Email)
	a.UpdatedAt = r.now().UTC()
	row := &accountRow{Account: *a}
	if err := r.rows.Update(ctx, store.Filter{"id": a.ID.String()}, row); err != nil {
		return mapStoreErr(err)
	}
	*a = row.Account
	return nil
}

func (r *accountRepoStore) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	row, err := r.get(ctx, store.Filter{"id": id.String()})
	if err != nil {
		return err
	}
	row.PasswordHash = passwordHash
	row.UpdatedAt = r.now().UTC()
	return mapStoreErr(r.rows.Update(ctx, store.Filter{"id": id.String()}, row))
}

func (r *accountRepoStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.rows.Delete(ctx, store.Filter{"id": id.String()})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepoStore) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Account, int, error) {
	eq := store.Filter{}
	if f.Role != "" {
		eq["role"] = f.Role
	}
	if f.Active != nil {
		eq["is_active"] = *f.Active
	}
	rows, total, err := r.rows.Find(ctx, store.Query{Eq: eq, Order: "name", Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, err
	}
	items := make([]*Account, 0, len(rows))
	for _, row := range rows {
		items = append(items, &row.Account)
	}
	return items, total, nil
}
