package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func newDumpCmd(a *app) *cobra.Command {
	var (
		schemaPath string
		table      string
		version    int
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the rows of a table to stdout as JSONL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(schemaPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()

			tio, ok := sess.store.(tableIO)
			if !ok {
				return userError(fmt.Errorf("backend %s cannot dump tables", sess.settings.storage.Backend))
			}

			var shape types.Shape
			if cmd.Flags().Changed("version") {
				shape, err = sess.schema.Shape(version)
				if err != nil {
					return userError(err)
				}
			} else if shape, err = storedShape(cmd, sess); err != nil {
				return err
			}
			if table == "" {
				table = entityTables(sess.schema)[0]
			}

			n, err := tio.Dump(cmd.Context(), table, shape, cmd.OutOrStdout())
			if err != nil {
				return classify(err)
			}
			sess.logger.Debug(cmd.Context(), "table dumped", "table", table, "version", shape.Version, "rows", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (required)")
	cmd.Flags().StringVar(&table, "table", "", "table to dump (default: first table of the entity)")
	cmd.Flags().IntVar(&version, "version", 0, "shape version to read the table with (default: stored version)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		schemaPath string
		table      string
		version    int
	)
	cmd := &cobra.Command{
		Use:   "load <file.jsonl>",
		Short: "Replace a table with JSONL rows and set the entity's version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(schemaPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()

			tio, ok := sess.store.(tableIO)
			if !ok {
				return userError(fmt.Errorf("backend %s cannot load tables", sess.settings.storage.Backend))
			}
			shape, err := sess.schema.Shape(version)
			if err != nil {
				return userError(err)
			}
			if table == "" {
				table = entityTables(sess.schema)[0]
			}

			f, err := os.Open(args[0])
			if err != nil {
				return userError(err)
			}
			defer f.Close()

			failures, err := tio.Load(cmd.Context(), table, shape, f)
			if err != nil {
				return classify(err)
			}

			entity := sess.schema.Entity
			if ns, ok := sess.store.(noteSetter); ok {
				err = ns.SetWithNotes(cmd.Context(), entity, version, "loaded from "+args[0])
			} else {
				err = sess.store.Set(cmd.Context(), entity, version)
			}
			if err != nil {
				return classify(err)
			}

			for _, rf := range failures {
				sess.logger.Error(cmd.Context(), "row rejected", "table", table, "row", rf.Row, "error", rf.Err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"entity":   entity,
					"table":    table,
					"version":  version,
					"rejected": len(failures),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: loaded at %d, %d rows rejected\n", table, version, len(failures))
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (required)")
	cmd.Flags().StringVar(&table, "table", "", "table to replace (default: first table of the entity)")
	cmd.Flags().IntVar(&version, "version", 0, "schema version the rows are at (required)")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the recorded migration runs of an entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(schemaPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()

			runs, err := sess.store.Runs(cmd.Context(), sess.schema.Entity)
			if err != nil {
				return sysError(err)
			}
			if a.flags.jsonMode {
				if runs == nil {
					runs = []types.Run{}
				}
				return printJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no runs recorded for %s\n", sess.schema.Entity)
				return nil
			}
			for _, r := range runs {
				plan := types.Plan{From: r.From, To: r.To, Steps: r.Steps}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %s  read %d, written %d, fallbacks %d, dropped %d\n",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.RunID, r.Table, plan.String(),
					r.RowsRead, r.RowsWritten, r.FieldFallbacks, r.RowFailures)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (required)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
