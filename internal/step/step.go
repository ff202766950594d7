// Package step runs declarative prepare/expect steps against databases: it
// resolves the connection, installs the DDL script and loads or verifies the
// CSV fixtures of every declared table.
package step

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"db-fixture/internal/conn"
	"db-fixture/internal/engine"
	"db-fixture/internal/fixture"
)

// services maps a step service key to the dialect name used to qualify its connection.
var services = map[string]string{
	"postgres": "postgresql",
	"mysql":    "mysql+pymysql",
	"mssql":    "mssql+pyodbc",
	"oracle":   "oracle+cx_oracle",
	"sqlite":   "sqlite",
}

// ServiceDialect returns the default dialect name of a service key.
func ServiceDialect(service string) (string, bool) {
	d, ok := services[strings.ToLower(service)]
	return d, ok
}

// TableFile binds a table to its fixture path. Lists of TableFile keep the
// order the tables were declared in.
type TableFile struct {
	Table string
	Path  string
}

// PopulateRequest installs an optional DDL script and loads fixtures, in
// declared order, into one database.
type PopulateRequest struct {
	Service string
	Conf    conn.Config
	Dialect string
	Driver  string
	Schema  string // DDL script path, optional
	Data    []TableFile
	UseJSON bool
}

// ExpectRequest compares tables with fixtures. Schema is accepted and ignored.
type ExpectRequest struct {
	Service string
	Conf    conn.Config
	Dialect string
	Driver  string
	Schema  string
	Data    []TableFile
	Strict  bool
}

// Step is one entry of a step file: a prepare step with populate requests,
// an expect step with compare requests or a service step running a query.
type Step struct {
	Populate []PopulateRequest
	Query    []QueryRequest
	Expect   []ExpectRequest
}

// Runner executes requests. Relative schema and data paths are resolved
// against ResourcesDir.
type Runner struct {
	ResourcesDir string
	Fixture      fixture.Options
	BatchSize    int
	Logger       *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Resource resolves a fixture or schema path.
func (r *Runner) Resource(path string) string {
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "s3://") || r.ResourcesDir == "" {
		return path
	}
	return filepath.Join(r.ResourcesDir, path)
}

// Run executes steps in order and stops at the first failing one.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	for i, s := range steps {
		if err := r.Execute(ctx, s); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Execute runs every request of one step. Populate requests run first, then
// queries, and both abort the step on error; expect requests all run and their
// failures are joined.
func (r *Runner) Execute(ctx context.Context, s Step) error {
	for _, req := range s.Populate {
		if err := r.Populate(ctx, req); err != nil {
			return err
		}
	}
	for _, req := range s.Query {
		res, err := r.Query(ctx, req)
		if err != nil {
			return err
		}
		r.logger().Info("query result", "service", req.Service, "rows", len(res.Rows), "result", res.Value())
	}
	var errs []error
	for _, req := range s.Expect {
		if err := r.Expect(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Populate installs the schema script, if any, then loads every table in declared order.
func (r *Runner) Populate(ctx context.Context, req PopulateRequest) error {
	log := r.logger().With("service", req.Service)

	db, target, err := r.open(ctx, req.Service, req.Conf, req.Dialect, req.Driver)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Debug("connected", "target", target.Display)

	if req.Schema != "" {
		ddl, err := r.readScript(ctx, req.Schema)
		if err != nil {
			return err
		}
		if err := engine.InstallSchema(ctx, db, target.Dialect, ddl, log); err != nil {
			return err
		}
	}

	opts := engine.Options{UseJSON: req.UseJSON, BatchSize: r.BatchSize, Logger: log}
	for _, tf := range req.Data {
		csv, err := fixture.ReadFile(ctx, r.Resource(tf.Path), r.Fixture)
		if err != nil {
			return fmt.Errorf("failed to open fixture for %s: %w", tf.Table, err)
		}
		_, err = engine.Populate(ctx, db, target.Dialect, tf.Table, csv, opts)
		csv.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Expect verifies every table and reports all failing tables at once. An error
// that stops the run is returned joined with the failures collected before it.
func (r *Runner) Expect(ctx context.Context, req ExpectRequest) error {
	log := r.logger().With("service", req.Service)

	db, target, err := r.open(ctx, req.Service, req.Conf, req.Dialect, req.Driver)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Debug("connected", "target", target.Display)

	if req.Schema != "" {
		log.Debug("schema comparison is not supported, ignoring", "schema", req.Schema)
	}

	opts := engine.Options{Strict: req.Strict, BatchSize: r.BatchSize, Logger: log}
	var errs []error
	for _, tf := range req.Data {
		csv, err := fixture.ReadFile(ctx, r.Resource(tf.Path), r.Fixture)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to open fixture for %s: %w", tf.Table, err))
			return errors.Join(errs...)
		}
		err = engine.Verify(ctx, db, target.Dialect, tf.Table, csv, opts)
		csv.Close()
		if errors.Is(err, engine.ErrVerification) {
			errs = append(errs, err)
			continue
		}
		if err != nil {
			errs = append(errs, err)
			return errors.Join(errs...)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) open(ctx context.Context, service string, cfg conn.Config, dialectName, driver string) (*sql.DB, *conn.Target, error) {
	if dialectName == "" {
		dialectName, _ = ServiceDialect(service)
	}
	resolved, err := conn.Resolve(cfg, dialectName, driver)
	if err != nil {
		return nil, nil, err
	}
	return conn.Open(ctx, resolved)
}

func (r *Runner) readScript(ctx context.Context, path string) (string, error) {
	rc, err := fixture.Open(ctx, r.Resource(path), r.Fixture)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("schema script %s not found: %w", path, err)
		}
		return "", fmt.Errorf("failed to open schema script %s: %w", path, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read schema script %s: %w", path, err)
	}
	return string(b), nil
}
