package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"db-fixture/internal/step"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <steps-file>",
	Short: "Run the prepare and expect steps of a YAML or TOML step file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := step.LoadFile(args[0])
		if err != nil {
			return err
		}
		start := time.Now()
		if err := newRunner().Run(cmd.Context(), steps); err != nil {
			return err
		}
		fmt.Printf("✓ %d steps passed in %s\n", len(steps), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var (
	populateConn    connFlags
	populateSchema  string
	populateData    []string
	populateUseJSON bool
)

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Install a schema script and load CSV fixtures",
	Example: `  db-fixture populate --service postgres --conf 'app:app@localhost/app' \
    --schema schema.sql --data users=users.csv --data orders=orders.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := populateConn.target()
		if err != nil {
			return err
		}
		data, err := parseTableFiles(populateData)
		if err != nil {
			return err
		}
		req := step.PopulateRequest{
			Service: p.Service, Conf: cfg, Dialect: p.Dialect, Driver: p.Driver,
			Schema: populateSchema, Data: data, UseJSON: populateUseJSON,
		}
		if err := newRunner().Populate(cmd.Context(), req); err != nil {
			return err
		}
		fmt.Printf("✓ populated %d tables\n", len(data))
		return nil
	},
}

var (
	expectConn   connFlags
	expectSchema string
	expectData   []string
	expectStrict bool
)

var expectCmd = &cobra.Command{
	Use:   "expect",
	Short: "Verify tables against CSV fixtures",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := expectConn.target()
		if err != nil {
			return err
		}
		data, err := parseTableFiles(expectData)
		if err != nil {
			return err
		}
		req := step.ExpectRequest{
			Service: p.Service, Conf: cfg, Dialect: p.Dialect, Driver: p.Driver,
			Schema: expectSchema, Data: data, Strict: expectStrict,
		}
		if err := newRunner().Expect(cmd.Context(), req); err != nil {
			return err
		}
		fmt.Printf("✓ %d tables match\n", len(data))
		return nil
	},
}

var queryConn connFlags

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run one SQL statement and print its result as JSON",
	Long: `Query prints a single value for a one-row, one-column result, the row for a
one-row result and the list of rows otherwise. Statements without a result set print null.`,
	Example: `  db-fixture query --service sqlite --conf /test.db 'select count(*) from users'`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := queryConn.target()
		if err != nil {
			return err
		}
		res, err := newRunner().Query(cmd.Context(), step.QueryRequest{
			Service: p.Service, Conf: cfg, Dialect: p.Dialect, Driver: p.Driver, Query: args[0],
		})
		if err != nil {
			return err
		}
		return printJSON(res.Value())
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	RootCmd.AddCommand(runCmd, populateCmd, expectCmd, queryCmd)

	queryConn.register(queryCmd)

	populateConn.register(populateCmd)
	populateCmd.Flags().StringVar(&populateSchema, "schema", "", "DDL script to run before loading")
	populateCmd.Flags().StringArrayVar(&populateData, "data", nil, "table=path fixture, repeatable, loaded in order")
	populateCmd.Flags().BoolVar(&populateUseJSON, "use-json", false, "decode fixture values as JSON where possible")

	expectConn.register(expectCmd)
	expectCmd.Flags().StringVar(&expectSchema, "schema", "", "expected schema script (accepted, not compared)")
	expectCmd.Flags().StringArrayVar(&expectData, "data", nil, "table=path fixture, repeatable")
	expectCmd.Flags().BoolVar(&expectStrict, "strict", false, "compare every row in order instead of checking a subset")
}
