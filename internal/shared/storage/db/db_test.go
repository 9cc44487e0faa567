package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nil, driver.ErrSkip }
func (nopConn) Ping(ctx context.Context) error            { return nil }

var registerTestDriverOnce sync.Once

func withTestDriver(t *testing.T) {
	t.Helper()
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return sql.Open("dbtest", dsn)
	}
	t.Cleanup(func() { openDB = prev })
}

func TestOptionsFromEnvAppliesOverrides(t *testing.T) {
	withTestDriver(t)

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")

	opts := OptionsFromEnv(DefaultServerOptions())
	db, err := Connect(context.Background(), DialectPostgres, "postgres://ignored", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if got := db.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", got)
	}
	if opts.MaxIdleConns != 3 {
		t.Fatalf("expected MaxIdleConns=3, got %d", opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime != 20*time.Minute {
		t.Fatalf("expected ConnMaxLifetime=20m, got %s", opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime != 45*time.Second {
		t.Fatalf("expected ConnMaxIdleTime=45s, got %s", opts.ConnMaxIdleTime)
	}
	if opts.PingTimeout != time.Second {
		t.Fatalf("expected PingTimeout=1s, got %s", opts.PingTimeout)
	}
}

func TestOptionsFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("DB_PING_TIMEOUT", "soon")

	opts := OptionsFromEnv(DefaultMigrateOptions())
	if opts.MaxOpenConns != 1 {
		t.Fatalf("expected default MaxOpenConns, got %d", opts.MaxOpenConns)
	}
	if opts.PingTimeout != 5*time.Second {
		t.Fatalf("expected default PingTimeout, got %s", opts.PingTimeout)
	}
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	if _, err := Connect(context.Background(), DialectSQLite, "  ", DefaultServerOptions()); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{
		"":           DialectSQLite,
		"sqlite3":    DialectSQLite,
		"PostgreSQL": DialectPostgres,
		"pgx":        DialectPostgres,
	}
	for raw, want := range cases {
		got, err := ParseDialect(raw)
		if err != nil {
			t.Fatalf("ParseDialect(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseDialect(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatalf("expected error for mysql")
	}
}

func TestSQLiteDSN(t *testing.T) {
	cases := map[string]string{
		"data/plantdoc.db":        "file:data/plantdoc.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		"file:x.db?mode=rwc":      "file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		"x.db?_pragma=journal(1)": "x.db?_pragma=journal(1)",
		":memory:":                ":memory:",
	}
	for in, want := range cases {
		if got := sqliteDSN(in); got != want {
			t.Fatalf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSQLiteMigrationsApply(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plantdoc.db")
	db, err := Connect(ctx, DialectSQLite, path, DefaultServerOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("expected sqlite to use a single connection, got %d", got)
	}
	if err := RunMigrations(ctx, db, DialectSQLite); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	// Running twice is a no-op.
	if err := RunMigrations(ctx, db, DialectSQLite); err != nil {
		t.Fatalf("RunMigrations again: %v", err)
	}
	version, err := MigrationVersion(ctx, db, DialectSQLite)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO history_favorites (item_id) VALUES (?)`, "analysis_1"); err != nil {
		t.Fatalf("insert favorite: %v", err)
	}
}

func TestRunMigrationsNilDatabase(t *testing.T) {
	if err := RunMigrations(context.Background(), nil, DialectPostgres); err != nil {
		t.Fatalf("expected nil database to be a no-op, got %v", err)
	}
}
