package conn

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"db-fixture/internal/dialect"

	"github.com/go-sql-driver/mysql"
	go_ora "github.com/sijms/go-ora/v2"
)

// Target is a resolved connection string translated for a database/sql driver.
type Target struct {
	Dialect    dialect.Dialect
	DriverName string // database/sql driver name
	DSN        string // driver-native DSN
	Display    string // DSN with the password masked, for logs
}

// ParseTarget translates a connection string produced by Resolve into the native
// DSN of the Go driver serving its dialect. It performs no I/O.
func ParseTarget(resolved string) (*Target, error) {
	idx := strings.Index(resolved, "://")
	if idx <= 0 {
		return nil, &ConfigError{Field: "conf", Reason: "connection string has no dialect scheme"}
	}
	scheme := strings.ToLower(resolved[:idx])
	rest := resolved[idx+3:]

	d, err := dialect.GetDialect(scheme)
	if err != nil {
		return nil, &ConfigError{Field: "dialect", Reason: err.Error()}
	}
	suffix := ""
	if plus := strings.IndexByte(scheme, '+'); plus >= 0 {
		suffix = scheme[plus+1:]
	}

	if d.Name() == "sqlite" {
		return sqliteTarget(d, rest), nil
	}

	// Python-style driver suffixes (cx_oracle) are not valid URL scheme characters.
	u, err := url.Parse("db://" + rest)
	if err != nil {
		return nil, &ConfigError{Field: "conf", Reason: fmt.Sprintf("malformed connection string: %v", err)}
	}
	query := u.Query()
	query.Del("driver") // ODBC driver names mean nothing to the Go drivers
	password, _ := u.User.Password()
	dbName := strings.TrimPrefix(u.Path, "/")

	switch d.Name() {
	case "postgres":
		driverName := "postgres"
		if suffix == "pgx" {
			driverName = "pgx"
		}
		pu := url.URL{Scheme: "postgres", User: u.User, Host: u.Host, Path: u.Path, RawQuery: query.Encode()}
		return &Target{Dialect: d, DriverName: driverName, DSN: pu.String(), Display: pu.Redacted()}, nil

	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = u.User.Username()
		cfg.Passwd = password
		cfg.Net = "tcp"
		cfg.Addr = hostWithPort(u.Host, d.DefaultPort())
		cfg.DBName = dbName
		cfg.MultiStatements = true
		for k := range query {
			if cfg.Params == nil {
				cfg.Params = make(map[string]string)
			}
			cfg.Params[k] = query.Get(k)
		}
		display := *cfg
		if display.Passwd != "" {
			display.Passwd = "xxxxx"
		}
		return &Target{Dialect: d, DriverName: "mysql", DSN: cfg.FormatDSN(), Display: display.FormatDSN()}, nil

	case "mssql":
		if dbName != "" {
			query.Set("database", dbName)
		}
		mu := url.URL{Scheme: "sqlserver", User: u.User, Host: hostWithPort(u.Host, d.DefaultPort()), RawQuery: query.Encode()}
		return &Target{Dialect: d, DriverName: "sqlserver", DSN: mu.String(), Display: mu.Redacted()}, nil

	case "oracle":
		host, port, err := splitHostPort(u.Host, d.DefaultPort())
		if err != nil {
			return nil, err
		}
		options := make(map[string]string, len(query))
		for k := range query {
			options[k] = query.Get(k)
		}
		dsn := go_ora.BuildUrl(host, port, dbName, u.User.Username(), password, options)
		display := go_ora.BuildUrl(host, port, dbName, u.User.Username(), "xxxxx", options)
		return &Target{Dialect: d, DriverName: "oracle", DSN: dsn, Display: display}, nil
	}

	return nil, &ConfigError{Field: "dialect", Reason: fmt.Sprintf("no driver for dialect %q", d.Name())}
}

// sqliteTarget follows the sqlite:///relative.db and sqlite:////absolute.db convention.
func sqliteTarget(d dialect.Dialect, rest string) *Target {
	path := strings.TrimPrefix(rest, "/")
	if q := strings.Index(path, "?"); q >= 0 {
		values, err := url.ParseQuery(path[q+1:])
		if err == nil {
			values.Del("driver")
			path = path[:q]
			if enc := values.Encode(); enc != "" {
				path += "?" + enc
			}
		}
	}
	if path == "" {
		path = ":memory:"
	}
	return &Target{Dialect: d, DriverName: "sqlite", DSN: path, Display: path}
}

// Open opens and pings the database behind a connection string returned by
// Resolve. The caller owns the returned handle.
func Open(ctx context.Context, resolved string) (*sql.DB, *Target, error) {
	target, err := ParseTarget(resolved)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(target.DriverName, target.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db %s: %w", target.Display, err)
	}
	if target.DriverName == "sqlite" {
		// one connection keeps :memory: databases and transactions consistent
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to db %s: %w", target.Display, err)
	}
	return db, target, nil
}

func hostWithPort(host string, defPort int) string {
	if _, _, err := net.SplitHostPort(host); err == nil || defPort == 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(defPort))
}

func splitHostPort(hostport string, defPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, defPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, &ConfigError{Field: "port", Reason: fmt.Sprintf("not a number: %q", portStr)}
	}
	return host, port, nil
}
