package dbadapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shibukawa/sqldoctest"
	"go.uber.org/zap"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
)

// Provisioner creates a fresh database for a single test file
type Provisioner interface {
	// Prepare drops and recreates the database called name and returns a
	// dedicated connection to it. cleanup releases the connection and every
	// resource created for it.
	Prepare(ctx context.Context, name string) (conn *sql.Conn, cleanup func(), err error)
	// Close releases resources shared between Prepare calls.
	Close() error
}

// Options configures a provisioner
type Options struct {
	Dialect         sqldoctest.Dialect
	Connection      string
	AdminConnection string
	// Dir holds sqlite database files. Defaults to a temporary directory.
	Dir     string
	MaxWait time.Duration
	Logger  *zap.Logger
}

// NewProvisioner returns the provisioner for opts.Dialect.
func NewProvisioner(opts Options) (Provisioner, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.AdminConnection == "" {
		opts.AdminConnection = opts.Connection
	}

	switch opts.Dialect {
	case sqldoctest.DialectPostgres:
		return &serverProvisioner{opts: opts, driver: postgresDriver{}}, nil
	case sqldoctest.DialectMySQL:
		return &serverProvisioner{opts: opts, driver: mysqlDriver{}}, nil
	case sqldoctest.DialectSQLite:
		return &sqliteProvisioner{opts: opts}, nil
	case sqldoctest.DialectDuckDB:
		return &duckdbProvisioner{opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: '%s'", sqldoctest.ErrUnsupportedDialect, opts.Dialect)
	}
}

// serverDriver captures what differs between client/server databases.
type serverDriver interface {
	quote(name string) string
	openAdmin(dsn string) (*sql.DB, error)
	openDatabase(dsn, name string) (*sql.DB, error)
}

type serverProvisioner struct {
	opts   Options
	driver serverDriver
	admin  *sql.DB
}

func (p *serverProvisioner) Prepare(ctx context.Context, name string) (*sql.Conn, func(), error) {
	if p.admin == nil {
		admin, err := p.driver.openAdmin(p.opts.AdminConnection)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open admin connection: %w", sqldoctest.ErrProvisioningFailed, err)
		}

		if err := WaitReady(ctx, admin, p.opts.MaxWait, p.opts.Logger); err != nil {
			_ = admin.Close()
			return nil, nil, fmt.Errorf("%w: %w", sqldoctest.ErrProvisioningFailed, err)
		}

		p.admin = admin
	}

	quoted := p.driver.quote(name)
	for _, stmt := range []string{
		"DROP DATABASE IF EXISTS " + quoted,
		"CREATE DATABASE " + quoted,
	} {
		p.opts.Logger.Debug("provisioning", zap.String("sql", stmt))

		if _, err := p.admin.ExecContext(ctx, stmt); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", sqldoctest.ErrProvisioningFailed, stmt, WrapError(err))
		}
	}

	db, err := p.driver.openDatabase(p.opts.Connection, name)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", sqldoctest.ErrProvisioningFailed, err)
	}

	if err := WaitReady(ctx, db, p.opts.MaxWait, p.opts.Logger); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%w: %w", sqldoctest.ErrProvisioningFailed, err)
	}

	return connect(ctx, db, func() {})
}

func (p *serverProvisioner) Close() error {
	if p.admin == nil {
		return nil
	}

	err := p.admin.Close()
	p.admin = nil

	return err
}

type postgresDriver struct{}

func (postgresDriver) quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (postgresDriver) openAdmin(dsn string) (*sql.DB, error) {
	return sql.Open(sqldoctest.DialectPostgres.DriverName(), dsn)
}

func (postgresDriver) openDatabase(dsn, name string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}

	cfg.Database = name

	return stdlib.OpenDB(*cfg), nil
}

type mysqlDriver struct{}

func (mysqlDriver) quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDriver) openAdmin(dsn string) (*sql.DB, error) {
	return sql.Open(sqldoctest.DialectMySQL.DriverName(), dsn)
}

func (mysqlDriver) openDatabase(dsn, name string) (*sql.DB, error) {
	dsn, err := rewriteMySQLDSN(dsn, name)
	if err != nil {
		return nil, err
	}

	return sql.Open(sqldoctest.DialectMySQL.DriverName(), dsn)
}

// rewriteMySQLDSN points dsn at database name.
func rewriteMySQLDSN(dsn, name string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql connection string: %w", err)
	}

	cfg.DBName = name

	return cfg.FormatDSN(), nil
}

// sqliteProvisioner keeps one database file per name and recreates it for every file.
type sqliteProvisioner struct {
	opts   Options
	tmpDir string
}

func (p *sqliteProvisioner) dir() (string, error) {
	if p.opts.Dir != "" {
		return p.opts.Dir, os.MkdirAll(p.opts.Dir, 0o755)
	}

	if p.tmpDir == "" {
		dir, err := os.MkdirTemp("", "sqldoctest-")
		if err != nil {
			return "", err
		}

		p.tmpDir = dir
	}

	return p.tmpDir, nil
}

func (p *sqliteProvisioner) Prepare(ctx context.Context, name string) (*sql.Conn, func(), error) {
	dir, err := p.dir()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", sqldoctest.ErrProvisioningFailed, err)
	}

	path := filepath.Join(dir, name+".sqlite3")

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %w", sqldoctest.ErrProvisioningFailed, err)
	}

	p.opts.Logger.Debug("provisioning", zap.String("path", path))

	db, err := sql.Open(sqldoctest.DialectSQLite.DriverName(), path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", sqldoctest.ErrProvisioningFailed, err)
	}

	return connect(ctx, db, func() { _ = os.Remove(path) })
}

func (p *sqliteProvisioner) Close() error {
	if p.tmpDir == "" {
		return nil
	}

	err := os.RemoveAll(p.tmpDir)
	p.tmpDir = ""

	return err
}

// duckdbProvisioner opens a new in-memory database for every file.
type duckdbProvisioner struct {
	opts Options
}

func (p *duckdbProvisioner) Prepare(ctx context.Context, name string) (*sql.Conn, func(), error) {
	p.opts.Logger.Debug("provisioning in-memory duckdb", zap.String("name", name))

	db, err := sql.Open(sqldoctest.DialectDuckDB.DriverName(), "")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", sqldoctest.ErrProvisioningFailed, err)
	}

	return connect(ctx, db, func() {})
}

func (p *duckdbProvisioner) Close() error {
	return nil
}

// connect takes a dedicated connection from db. The returned cleanup closes the
// connection, the pool and then runs release.
func connect(ctx context.Context, db *sql.DB, release func()) (*sql.Conn, func(), error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		release()

		return nil, nil, fmt.Errorf("%w: %w", sqldoctest.ErrProvisioningFailed, WrapError(err))
	}

	cleanup := func() {
		_ = conn.Close()
		_ = db.Close()

		release()
	}

	return conn, cleanup, nil
}
