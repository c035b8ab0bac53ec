// Package migrate applies the goose SQL migrations under migrations/. The
// files are compiled into every binary, so the api and cron worker can
// auto-migrate in dev without a checkout next to them.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the on-disk location of the migrations, used by the CLI.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// goose keeps its dialect and base filesystem in package state.
var gooseMu sync.Mutex

// Run executes a goose command. An empty dir runs the embedded migrations.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	return withGoose(dir, func(dir string) error {
		if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil || target <= 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", targetVersion)
	}

	return withGoose(dir, func(dir string) error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == target:
			return nil
		case current < target:
			err = goose.UpToContext(ctx, db, dir, target)
		default:
			err = goose.DownToContext(ctx, db, dir, target)
		}
		if err != nil {
			return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
		}
		return nil
	})
}

func withGoose(dir string, fn func(dir string) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if dir == "" {
		goose.SetBaseFS(embedded)
		defer goose.SetBaseFS(nil)
		dir = embeddedDir
	}
	return fn(dir)
}
