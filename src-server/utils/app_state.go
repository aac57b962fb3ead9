package utils

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"meetroom/src-server/model"

	"github.com/olebedev/when"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type AppState struct {
	Config *Config
	RawDb  *sql.DB
	BunDb  *bun.DB
	When   *when.Parser
}

func NewAppState() *AppState {
	as := &AppState{}

	// date parser
	as.When = NewWhen()

	// env
	as.Config = NewConfig()

	// database
	var err error
	as.RawDb, err = sql.Open(sqliteshim.ShimName, as.Config.GetDatabasePath()+"?mode=rwc")
	if err != nil {
		slog.Error("cannot open sqlite database", "error", err)
		os.Exit(1)
	}
	// one writer at a time keeps conflict checks and their writes atomic
	as.RawDb.SetMaxOpenConns(1)

	as.BunDb = bun.NewDB(as.RawDb, sqlitedialect.New())
	as.BunDb.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(true),
		bundebug.FromEnv("BUNDEBUG"),
	))

	if err := model.CreateSchema(context.Background(), as.BunDb); err != nil {
		slog.Error("cannot create schema", "error", err)
		os.Exit(1)
	}

	return as
}

func (as *AppState) Close() {
	if err := as.BunDb.Close(); err != nil {
		slog.Warn("can't close database", "error", err)
	}
}
