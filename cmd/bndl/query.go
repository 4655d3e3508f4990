package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/burnoutmods/bndl/internal/database"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Query the bundle index database",
	Long: `Query executes SQL against the index built by "bndl index", or lists the
available tables and their schemas.

Examples:
  bndl query --tables
  bndl query --schema resources
  bndl query "SELECT debug_name, resource_type FROM resources WHERE resource_type = 'Model'"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		listTables, err := cmd.Flags().GetBool("tables")
		if err != nil {
			return fmt.Errorf("failed to get tables flag: %w", err)
		}
		schemaTable, err := cmd.Flags().GetString("schema")
		if err != nil {
			return fmt.Errorf("failed to get schema flag: %w", err)
		}

		db, err := database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if listTables {
			rows, err := db.QueryContext(ctx, `
				SELECT name FROM sqlite_master
				WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
				ORDER BY name
			`)
			if err != nil {
				return fmt.Errorf("listing tables: %w", err)
			}
			defer rows.Close()

			fmt.Println("Available tables:")
			for rows.Next() {
				var tableName string
				if err := rows.Scan(&tableName); err != nil {
					return fmt.Errorf("scanning table name: %w", err)
				}
				fmt.Printf("  %s\n", tableName)
			}
			return rows.Err()
		}

		if schemaTable != "" {
			rows, err := db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?)`, schemaTable)
			if err != nil {
				return fmt.Errorf("getting schema for table %s: %w", schemaTable, err)
			}
			defer rows.Close()

			fmt.Printf("Schema for table '%s':\n", schemaTable)
			for rows.Next() {
				var name, dataType string
				if err := rows.Scan(&name, &dataType); err != nil {
					return fmt.Errorf("scanning schema row: %w", err)
				}
				fmt.Printf("  %-24s %s\n", name, dataType)
			}
			return rows.Err()
		}

		if len(args) == 0 {
			return fmt.Errorf("provide a SQL statement, or use --tables / --schema")
		}

		populated, err := db.HasBundles(ctx)
		if err != nil {
			return err
		}
		if !populated {
			return fmt.Errorf("index %s has no bundles; run \"bndl index\" first", db.Path())
		}

		rows, err := db.QueryContext(ctx, strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("executing query: %w", err)
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("reading result columns: %w", err)
		}
		fmt.Println(strings.Join(columns, "\t"))

		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		for rows.Next() {
			if err := rows.Scan(pointers...); err != nil {
				return fmt.Errorf("scanning result row: %w", err)
			}
			fields := make([]string, len(values))
			for i, v := range values {
				switch val := v.(type) {
				case nil:
					fields[i] = ""
				case []byte:
					fields[i] = string(val)
				default:
					fields[i] = fmt.Sprintf("%v", val)
				}
			}
			fmt.Println(strings.Join(fields, "\t"))
		}
		return rows.Err()
	},
}

func init() {
	queryCmd.Flags().Bool("tables", false, "list available tables")
	queryCmd.Flags().String("schema", "", "show the schema of a table")
	rootCmd.AddCommand(queryCmd)
}
