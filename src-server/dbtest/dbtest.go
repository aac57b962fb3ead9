// Package dbtest opens throwaway in-memory sqlite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"meetroom/src-server/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// New returns a migrated database that is closed when the test ends.
func New(t testing.TB) *bun.DB {
	t.Helper()

	rawDb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and serialises writers
	rawDb.SetMaxOpenConns(1)

	db := bun.NewDB(rawDb, sqlitedialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.FromEnv("BUNDEBUG")))
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, model.CreateSchema(context.Background(), db))
	return db
}

// Fixtures creates users, locations and virtual accounts by id.
type Fixtures struct {
	t  testing.TB
	db bun.IDB
}

func Seed(t testing.TB, db bun.IDB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) User(id, timezone string) *model.User {
	f.t.Helper()
	user := &model.User{ID: id, Name: id, Email: id + "@example.com", Timezone: timezone}
	require.NoError(f.t, user.Upsert(context.Background(), f.db))
	return user
}

func (f *Fixtures) Manager(id string) *model.User {
	f.t.Helper()
	user := &model.User{ID: id, Name: id, Email: id + "@example.com", IsManager: true}
	require.NoError(f.t, user.Upsert(context.Background(), f.db))
	return user
}

func (f *Fixtures) Location(id, timezone string) *model.Location {
	f.t.Helper()
	location := &model.Location{ID: id, Name: id, Timezone: timezone, Active: true}
	require.NoError(f.t, location.Upsert(context.Background(), f.db))
	return location
}

func (f *Fixtures) VirtualAccount(id, provider, staticLink string) *model.VirtualAccount {
	f.t.Helper()
	account := &model.VirtualAccount{ID: id, Name: id, Provider: provider, StaticLink: staticLink, Active: true}
	require.NoError(f.t, account.Upsert(context.Background(), f.db))
	return account
}
