// Package conn resolves fixture connection configurations into connection strings
// and opens database handles for them.
package conn

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrConfig marks malformed connection shapes, missing fields and unresolvable dialects.
var ErrConfig = errors.New("configuration error")

// ConfigError describes a configuration problem. It matches ErrConfig with errors.Is.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Config is one of the three accepted connection shapes: Plain, URLObject or FieldObject.
type Config interface {
	shape() string
}

// Plain is a raw connection string, bare (user:pass@host:port/db) or dialect qualified.
type Plain string

// URLObject carries a URL plus auxiliary fields such as the ODBC driver name.
type URLObject struct {
	URL   string
	Extra map[string]any
}

// FieldObject is a fully decomposed configuration. Port 0 means the dialect default.
type FieldObject struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Driver   string
}

func (Plain) shape() string       { return "plain" }
func (URLObject) shape() string   { return "url" }
func (FieldObject) shape() string { return "fields" }

// FromValue builds a Config from a decoded YAML/TOML/JSON value.
func FromValue(v any) (Config, error) {
	switch val := v.(type) {
	case nil:
		return nil, &ConfigError{Field: "conf", Reason: "missing connection configuration"}
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, &ConfigError{Field: "conf", Reason: "empty connection string"}
		}
		return Plain(strings.TrimSpace(val)), nil
	case Config:
		return val, nil
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return fromMap(m)
	case map[string]any:
		return fromMap(val)
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = item
		}
		return fromMap(m)
	default:
		return nil, &ConfigError{Field: "conf", Reason: fmt.Sprintf("unsupported configuration type %T", v)}
	}
}

func fromMap(m map[string]any) (Config, error) {
	if raw, ok := m["url"]; ok {
		u, ok := raw.(string)
		if !ok || strings.TrimSpace(u) == "" {
			return nil, &ConfigError{Field: "url", Reason: "must be a non-empty string"}
		}
		extra := make(map[string]any, len(m)-1)
		for k, item := range m {
			if k != "url" {
				extra[k] = item
			}
		}
		return URLObject{URL: strings.TrimSpace(u), Extra: extra}, nil
	}

	fo := FieldObject{
		Host:     stringField(m, "host"),
		User:     stringField(m, "user"),
		Password: stringField(m, "password"),
		DBName:   stringField(m, "dbname"),
		Driver:   stringField(m, "driver"),
	}
	if raw, ok := m["port"]; ok && raw != nil {
		port, err := toPort(raw)
		if err != nil {
			return nil, err
		}
		fo.Port = port
	}
	if err := fo.validate(); err != nil {
		return nil, err
	}
	return fo, nil
}

func (f FieldObject) validate() error {
	var missing []string
	for name, val := range map[string]string{"host": f.Host, "user": f.User, "password": f.Password, "dbname": f.DBName} {
		if val == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &ConfigError{Field: strings.Join(missing, ", "), Reason: "required field missing"}
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func toPort(v any) (int, error) {
	var port int
	switch p := v.(type) {
	case int:
		port = p
	case int64:
		port = int(p)
	case uint64:
		port = int(p)
	case float64:
		port = int(p)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, &ConfigError{Field: "port", Reason: fmt.Sprintf("not a number: %q", p)}
		}
		port = n
	default:
		return 0, &ConfigError{Field: "port", Reason: fmt.Sprintf("unsupported type %T", v)}
	}
	if port < 1 || port > 65535 {
		return 0, &ConfigError{Field: "port", Reason: "must be between 1 and 65535"}
	}
	return port, nil
}
