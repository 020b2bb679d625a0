// Command crud6 inspects schema documents and runs listings against a SQLite
// database from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssnukala/sprinkle-crud6-sub001/core"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/listing"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
	"github.com/ssnukala/sprinkle-crud6-sub001/sqlite"
)

var (
	flagSchemas   string
	flagNamespace string
	flagDB        string
	flagVerbose   bool
)

func main() {
	root := &cobra.Command{
		Use:           "crud6",
		Short:         "Schema-driven CRUD engine tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagSchemas, "schemas", "schemas", "directory containing schema documents")
	root.PersistentFlags().StringVar(&flagNamespace, "namespace", "", "schema namespace (subdirectory)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "sqlite database path")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(validateCmd(), showCmd(), actionsCmd(), listCmd())

	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func newService() (*core.Service, func(), error) {
	logger := zap.NewNop()
	if flagVerbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}

	loader := schema.NewFSLoader(flagSchemas, logger)
	opts := core.DefaultServiceOptions()
	opts.Namespace = flagNamespace
	opts.Logger = logger

	cleanup := func() {}
	var executor listing.Executor
	var dialect listing.Dialect
	if flagDB != "" {
		store, err := sqlite.Open(flagDB, logger)
		if err != nil {
			return nil, nil, err
		}
		executor, dialect = store, sqlite.Dialect
		cleanup = func() { _ = store.Close() }
	}

	service, err := core.NewService(loader, executor, dialect, opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return service, cleanup, nil
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <model>...",
		Short: "Load, validate, and normalize schema documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := newService()
			if err != nil {
				return err
			}
			defer cleanup()

			failed := 0
			for _, model := range args {
				if _, err := service.GetSchema(cmd.Context(), model); err != nil {
					color.Red("FAIL  %s: %v", model, err)
					failed++
					continue
				}
				color.Green("OK    %s", model)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d schemas invalid", failed, len(args))
			}
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	var contexts string
	cmd := &cobra.Command{
		Use:   "show <model>",
		Short: "Print a context-scoped schema view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := newService()
			if err != nil {
				return err
			}
			defer cleanup()

			v, err := service.GetContextSchema(cmd.Context(), args[0], strings.Split(contexts, ","))
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}
	cmd.Flags().StringVar(&contexts, "contexts", "list", "comma-joined context names")
	return cmd
}

func actionsCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "actions <model>",
		Short: "Print the actions renderable in a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := newService()
			if err != nil {
				return err
			}
			defer cleanup()

			actions, err := service.GetActionsForScope(cmd.Context(), args[0], scope)
			if err != nil {
				return err
			}
			return printJSON(actions)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", schema.ScopeList, "action scope (list or detail)")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		page, size int
		sorts      []string
		filters    []string
		search     string
		relatedTo  string
		relation   string
	)
	cmd := &cobra.Command{
		Use:   "list <model>",
		Short: "Run a listing query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagDB == "" {
				return fmt.Errorf("--db is required for listings")
			}
			service, cleanup, err := newService()
			if err != nil {
				return err
			}
			defer cleanup()

			params := listing.Params{Page: page, Size: size, Search: search}
			for _, entry := range sorts {
				field, direction, ok := strings.Cut(entry, ":")
				if !ok {
					direction = string(listing.SortAsc)
				}
				if params.Sorts == nil {
					params.Sorts = make(map[string]listing.SortDirection)
				}
				params.Sorts[field] = listing.SortDirection(direction)
			}
			for _, entry := range filters {
				field, value, ok := strings.Cut(entry, "=")
				if !ok {
					return fmt.Errorf("invalid filter %q, expected field=value", entry)
				}
				if params.Filters == nil {
					params.Filters = make(map[string]any)
				}
				params.Filters[field] = value
			}

			var result *listing.Result
			if relation != "" {
				if relatedTo == "" {
					return fmt.Errorf("--record is required with --relation")
				}
				result, err = service.ListRelatedRecords(cmd.Context(), args[0], relatedTo, relation, params)
			} else {
				result, err = service.ListRecords(cmd.Context(), args[0], params)
			}
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "size", 0, "page size (0 uses the default)")
	cmd.Flags().StringArrayVar(&sorts, "sort", nil, "sort as field:asc|desc (repeatable)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as field=value (repeatable)")
	cmd.Flags().StringVar(&search, "search", "", "free-text search across filterable fields")
	cmd.Flags().StringVar(&relatedTo, "record", "", "parent record id for related listings")
	cmd.Flags().StringVar(&relation, "relation", "", "related listing name")
	return cmd
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
