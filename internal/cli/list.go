package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablesync/pkg/types"
)

type listFlags struct {
	limit  int
	offset int
	where  string
}

func newListCmd(a *app) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "list <table> [key=value...]",
		Short: "List documents with optional filters",
		Long: `List documents of a table in insertion order.

Filters are key=value pairs matched exactly against top-level fields and
ANDed together. Values are parsed as JSON when possible (true, 42, null),
otherwise taken as strings. --where applies an expr-lang predicate to each
returned document; documents it cannot be evaluated against are dropped.

An unfiltered, unpaginated list replaces the local index; filtered or
paginated lists merge into it.

Example:
  tablesync list people
  tablesync list people team=red active=true
  tablesync list people --limit 10 --offset 20
  tablesync list people --where 'age >= 30 && team != "blue"'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseListParams(args[1:])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("limit") || cmd.Flags().Changed("offset") {
				params.Pagination = &types.Pagination{Offset: lf.offset, Limit: lf.limit}
			}
			var predicate *vm.Program
			if lf.where != "" {
				if predicate, err = compileWhere(lf.where); err != nil {
					return err
				}
			}

			return a.withTable(cmd.Context(), args[0], func(ctx context.Context, tbl *docTable) error {
				docs, err := tbl.List.Trigger(ctx, params)
				if err != nil {
					return err
				}
				if predicate != nil {
					var skipped int
					docs, skipped = filterWhere(predicate, docs)
					if skipped > 0 {
						a.logger.Debug("where predicate failed on some documents", zap.Int("skipped", skipped))
					}
				}
				if docs == nil {
					docs = []types.Document{}
				}
				return printJSON(cmd.OutOrStdout(), docs, a.jsonMode)
			})
		},
	}
	cmd.Flags().IntVar(&lf.limit, "limit", 0, "maximum number of documents (0 = no limit)")
	cmd.Flags().IntVar(&lf.offset, "offset", 0, "number of documents to skip")
	cmd.Flags().StringVar(&lf.where, "where", "", "expr-lang predicate evaluated per document")
	return cmd
}

// parseListParams turns key=value arguments into filters.
func parseListParams(args []string) (types.ListParams, error) {
	var params types.ListParams
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return types.ListParams{}, fmt.Errorf("%w: %q (expected key=value)", types.ErrInvalidFilter, arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		if params.Filters == nil {
			params.Filters = make(map[string]any)
		}
		params.Filters[key] = parsed
	}
	return params, nil
}

func compileWhere(where string) (*vm.Program, error) {
	program, err := expr.Compile(where,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: where: %v", types.ErrInvalidFilter, err)
	}
	return program, nil
}

// filterWhere keeps the documents for which program evaluates to true. A
// document the predicate cannot be evaluated against, for example because
// it lacks a compared field, is dropped and counted.
func filterWhere(program *vm.Program, docs []types.Document) (kept []types.Document, failed int) {
	kept = make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		result, err := expr.Run(program, map[string]any(doc))
		if err != nil {
			failed++
			continue
		}
		if keep, _ := result.(bool); keep {
			kept = append(kept, doc)
		}
	}
	return kept, failed
}
