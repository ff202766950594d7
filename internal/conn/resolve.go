package conn

import (
	"fmt"
	"log/slog"
	"strings"

	"db-fixture/internal/dialect"
)

type registryEntry struct {
	Name string
	Port int // 0: no port
}

// registry lists the known dialect names with their default ports, in prefix-search order.
var registry = []registryEntry{
	{Name: "postgres", Port: 5432},
	{Name: "mysql+pymysql", Port: 3306},
	{Name: "mssql+pyodbc", Port: 1433},
	{Name: "oracle+cx_oracle", Port: 1521},
	{Name: "sqlite"},
}

// DefaultPort returns the registry port of a dialect name, falling back to the
// dialect family ("postgresql" -> 5432). The bool is false when no port is known.
func DefaultPort(name string) (int, bool) {
	n := strings.ToLower(name)
	for _, e := range registry {
		if e.Name == n {
			return e.Port, e.Port > 0
		}
	}
	if d, err := dialect.GetDialect(n); err == nil && d.DefaultPort() > 0 {
		return d.DefaultPort(), true
	}
	return 0, false
}

// matchRegistry returns the first registry name the scheme is a prefix of.
func matchRegistry(scheme string) (string, bool) {
	if scheme == "" {
		return "", false
	}
	s := strings.ToLower(scheme)
	for _, e := range registry {
		if strings.HasPrefix(e.Name, s) {
			return e.Name, true
		}
	}
	return "", false
}

// Resolve turns a Config into a dialect-qualified connection string.
// dialectName is the default dialect for unqualified strings; driver, when set,
// is appended as an ODBC-style driver= query parameter. Credentials are not escaped.
func Resolve(cfg Config, dialectName, driver string) (string, error) {
	var out string
	switch c := cfg.(type) {
	case Plain:
		s, err := resolveString(string(c), dialectName)
		if err != nil {
			return "", err
		}
		out = s
	case URLObject:
		s, err := resolveString(c.URL, dialectName)
		if err != nil {
			return "", err
		}
		out = s
		if driver == "" {
			if d, ok := c.Extra["driver"]; ok && d != nil {
				driver = fmt.Sprint(d)
			}
		}
	case FieldObject:
		if err := c.validate(); err != nil {
			return "", err
		}
		if dialectName == "" {
			return "", &ConfigError{Field: "dialect", Reason: "no dialect given for field configuration"}
		}
		port := c.Port
		if port == 0 {
			port, _ = DefaultPort(dialectName)
		}
		hostPort := c.Host
		if port > 0 {
			hostPort = fmt.Sprintf("%s:%d", c.Host, port)
		}
		out = fmt.Sprintf("%s://%s:%s@%s/%s", dialectName, c.User, c.Password, hostPort, c.DBName)
		if driver == "" {
			driver = c.Driver
		}
	case nil:
		return "", &ConfigError{Field: "conf", Reason: "missing connection configuration"}
	default:
		return "", &ConfigError{Field: "conf", Reason: fmt.Sprintf("unsupported configuration shape %T", cfg)}
	}

	return appendDriver(out, driver), nil
}

func resolveString(s, dialectName string) (string, error) {
	idx := strings.Index(s, "://")
	if idx < 0 {
		if dialectName == "" {
			return "", &ConfigError{Field: "dialect", Reason: fmt.Sprintf("cannot qualify %q without a dialect", redactBare(s))}
		}
		return dialectName + "://" + s, nil
	}

	scheme := s[:idx]
	if strings.Contains(scheme, "+") || strings.HasPrefix(s, "postgresql") {
		return s, nil
	}
	if name, ok := matchRegistry(scheme); ok {
		return name + s[idx:], nil
	}
	if dialectName == "" {
		return "", &ConfigError{Field: "dialect", Reason: fmt.Sprintf("unknown dialect %q", scheme)}
	}
	slog.Warn("unknown dialect in connection string, using default", "scheme", scheme, "dialect", dialectName)
	return dialectName + s[idx:], nil
}

func appendDriver(s, driver string) string {
	if driver == "" || strings.Contains(s, "driver=") {
		return s
	}
	sep := "?"
	if strings.Contains(s, "?") {
		sep = "&"
	}
	return s + sep + "driver=" + strings.ReplaceAll(driver, " ", "+")
}

// redactBare hides the password of a user:pass@host string for error messages.
func redactBare(s string) string {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return s
	}
	userinfo := s[:at]
	if colon := strings.Index(userinfo, ":"); colon >= 0 {
		return userinfo[:colon] + ":xxxxx" + s[at:]
	}
	return s
}
