package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luskaa234/integrarneurpp-sub000/internal/config"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/account"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/financial"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/medical"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/messaging"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/scheduling"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/cache"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/store"
)

// backend is the open store: a pgx pool, or a REST client when the data
// lives behind PostgREST.
type backend struct {
	pool   *pgxpool.Pool
	client store.Client
	tx     db.Transactor
	pinger db.Pinger
	clinic string
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &backend{pool: pool, tx: db.NewPoolTx(pool), pinger: pool, clinic: cfg.DefaultClinic}, nil
	case config.BackendSupabase:
		client, err := store.NewPostgREST(cfg.SupabaseURL, cfg.SupabaseKey, "account")
		if err != nil {
			return nil, err
		}
		return &backend{client: client, tx: db.NoTx{}, pinger: client, clinic: cfg.DefaultClinic}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// scope runs fn against the default clinic. Postgres needs a connection
// pointed at the clinic schema; the REST backend serves one clinic.
func (b *backend) scope(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.pool == nil {
		return fn(ctx)
	}
	return db.WithClinic(ctx, b.pool, b.clinic, fn)
}

func (b *backend) accounts() account.Repository {
	if b.pool != nil {
		return account.NewAccountRepoPG(b.pool)
	}
	return account.NewAccountRepoStore(b.client)
}

func (b *backend) appointments() scheduling.Repository {
	if b.pool != nil {
		return scheduling.NewAppointmentRepoPG(b.pool)
	}
	return scheduling.NewAppointmentRepoStore(b.client)
}

func (b *backend) financial() financial.Repository {
	if b.pool != nil {
		return financial.NewRecordRepoPG(b.pool)
	}
	return financial.NewRecordRepoStore(b.client)
}

func (b *backend) medical() medical.Repository {
	if b.pool != nil {
		return medical.NewRecordRepoPG(b.pool)
	}
	return medical.NewRecordRepoStore(b.client)
}

func (b *backend) messaging() (messaging.TemplateRepository, messaging.CatalogRepository, messaging.LogRepository) {
	if b.pool != nil {
		return messaging.NewTemplateRepoPG(b.pool), messaging.NewCatalogRepoPG(b.pool), messaging.NewLogRepoPG(b.pool)
	}
	return messaging.NewTemplateRepoStore(b.client), messaging.NewCatalogRepoStore(b.client), messaging.NewLogRepoStore(b.client)
}

// scoped wraps a mirror loader so it reads the default clinic.
func scoped[T cache.Row](b *backend, load cache.Loader[T]) cache.Loader[T] {
	return func(ctx context.Context) ([]T, error) {
		var rows []T
		err := b.scope(ctx, func(ctx context.Context) error {
			var err error
			rows, err = load(ctx)
			return err
		})
		return rows, err
	}
}
