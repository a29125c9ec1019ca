package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/tablesync/internal/scope"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Resync every configured table",
		Long:  "Run an unfiltered list on every configured table concurrently and report\nhow many documents each reconciled index holds.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			counts, names, err := a.pull(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), counts, true)
			}
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, counts[name])
			}
			return nil
		},
	}
}

// pull mounts every table under one root scope and resyncs them in
// parallel. It returns the index size per table and the table order.
func (a *app) pull(ctx context.Context) (map[string]int, []string, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	defer store.Detach()

	root := scope.NewRoot()
	names := store.Tables()
	tables := make([]*docTable, len(names))
	for i, name := range names {
		p, tbl, err := a.mountTable(root, store, name)
		if err != nil {
			return nil, nil, err
		}
		defer p.Unmount()
		tables[i] = tbl
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, tbl := range tables {
		g.Go(func() error {
			if _, err := tbl.List.Trigger(gctx, types.ListParams{}); err != nil {
				return err
			}
			a.logger.Debug("table pulled", zap.String("table", tbl.Name()), zap.Int("entries", tbl.Len()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	counts := make(map[string]int, len(tables))
	for _, tbl := range tables {
		counts[tbl.Name()] = tbl.Len()
	}
	return counts, names, nil
}
