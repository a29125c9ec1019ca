package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tablesync/pkg/types"
)

func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <table> <id>",
		Short: "Fetch one document by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTable(cmd.Context(), args[0], func(ctx context.Context, tbl *docTable) error {
				doc, err := tbl.Find.Trigger(ctx, types.FindParams{ID: args[1]})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc, a.jsonMode)
			})
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <table> <json>",
		Short: "Create a document",
		Long: `Create a document from a JSON object. An "id" field is used when present;
otherwise a UUID v7 is generated.

Example:
  tablesync create people '{"name":"Ada","team":"red"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseDocument(args[1])
			if err != nil {
				return err
			}
			return a.withTable(cmd.Context(), args[0], func(ctx context.Context, tbl *docTable) error {
				doc, err := tbl.Create.Trigger(ctx, types.CreateParams[types.Document]{Data: data})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc, a.jsonMode)
			})
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <table> <id> <json>",
		Short: "Merge fields into a document",
		Long: `Merge the top-level fields of a JSON object into an existing document.
The id and created_at fields cannot be changed.

Example:
  tablesync update people 0190c3b2-... '{"team":"blue"}'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseDocument(args[2])
			if err != nil {
				return err
			}
			return a.withTable(cmd.Context(), args[0], func(ctx context.Context, tbl *docTable) error {
				doc, err := tbl.Update.Trigger(ctx, types.UpdateParams[types.Document]{ID: args[1], Data: data})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc, a.jsonMode)
			})
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <table> <id>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a document and print it",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTable(cmd.Context(), args[0], func(ctx context.Context, tbl *docTable) error {
				doc, err := tbl.Remove.Trigger(ctx, types.RemoveParams{ID: args[1]})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc, a.jsonMode)
			})
		},
	}
}

// parseDocument decodes a JSON object argument.
func parseDocument(arg string) (types.Document, error) {
	var doc types.Document
	if err := json.Unmarshal([]byte(arg), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", types.ErrInvalidData)
	}
	return doc, nil
}
