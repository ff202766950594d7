package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-fixture/internal/conn"
	"db-fixture/internal/step"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Profile is a named connection from the config file:
//
//	databases:
//	  - name: local
//	    service: postgres
//	    conf: {host: localhost, user: app, password: app, dbname: app}
//	    active: true
type Profile struct {
	Name    string `mapstructure:"name"`
	Service string `mapstructure:"service"`
	Dialect string `mapstructure:"dialect"`
	Driver  string `mapstructure:"driver"`
	Conf    any    `mapstructure:"conf"`
	Active  bool   `mapstructure:"active"`
}

// GetActiveProfile returns the currently active database profile.
func GetActiveProfile() (*Profile, error) {
	var profiles []Profile

	if err := viper.UnmarshalKey("databases", &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}

	var active *Profile
	count := 0

	for i := range profiles {
		if profiles[i].Active {
			active = &profiles[i]
			count++
		}
	}

	if count == 0 {
		return nil, fmt.Errorf("no active database found in config (set active: true) and no --conf given")
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple active databases found (only one can be active)")
	}

	return active, nil
}

// connFlags are the connection flags shared by every command that talks to a database.
type connFlags struct {
	conf    string
	service string
	dialect string
	driver  string
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.conf, "conf", "", "connection string (default: active profile of the config file)")
	cmd.Flags().StringVar(&f.service, "service", "", "service kind: postgres, mysql, mssql, oracle or sqlite")
	cmd.Flags().StringVar(&f.dialect, "dialect", "", "dialect used to qualify a bare connection string")
	cmd.Flags().StringVar(&f.driver, "driver", "", "ODBC driver name appended as driver=")
}

// target merges the flags with the active profile. Flags win.
func (f *connFlags) target() (*Profile, conn.Config, error) {
	p := &Profile{Service: f.service, Dialect: f.dialect, Driver: f.driver}
	var raw any = f.conf
	if f.conf == "" {
		active, err := GetActiveProfile()
		if err != nil {
			return nil, nil, err
		}
		raw = active.Conf
		p.Name = active.Name
		if p.Service == "" {
			p.Service = active.Service
		}
		if p.Dialect == "" {
			p.Dialect = active.Dialect
		}
		if p.Driver == "" {
			p.Driver = active.Driver
		}
	}
	cfg, err := conn.FromValue(raw)
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}

// open resolves and connects. The caller closes the handle.
func (f *connFlags) open(ctx context.Context) (*sql.DB, *conn.Target, error) {
	p, cfg, err := f.target()
	if err != nil {
		return nil, nil, err
	}
	dialectName := p.Dialect
	if dialectName == "" {
		dialectName, _ = step.ServiceDialect(p.Service)
	}
	resolved, err := conn.Resolve(cfg, dialectName, p.Driver)
	if err != nil {
		return nil, nil, err
	}
	return conn.Open(ctx, resolved)
}

// parseTableFiles reads repeated table=path flags, keeping their order.
func parseTableFiles(pairs []string) ([]step.TableFile, error) {
	out := make([]step.TableFile, 0, len(pairs))
	for _, pair := range pairs {
		table, path, ok := strings.Cut(pair, "=")
		table, path = strings.TrimSpace(table), strings.TrimSpace(path)
		if !ok || table == "" || path == "" {
			return nil, fmt.Errorf("invalid --data %q, expected table=path", pair)
		}
		out = append(out, step.TableFile{Table: table, Path: path})
	}
	return out, nil
}
