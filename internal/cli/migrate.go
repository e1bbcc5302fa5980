package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/internal/metrics"
	"github.com/mesh-intelligence/strata/pkg/migrate"
	"github.com/mesh-intelligence/strata/pkg/types"
)

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <old> <new>",
		Short: "Print the milestone steps between two versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var versions [2]int
			for i, arg := range args {
				v, err := strconv.Atoi(arg)
				if err != nil {
					return userError(fmt.Errorf("version %q: %w", arg, types.ErrInvalidVersion))
				}
				versions[i] = v
			}
			plan, err := migrate.NewPlan(versions[0], versions[1])
			if err != nil {
				return userError(err)
			}
			if a.flags.jsonMode {
				if plan.Steps == nil {
					plan.Steps = []int{}
				}
				return printJSON(cmd.OutOrStdout(), plan)
			}
			if plan.Empty() {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing to do: %d is not older than %d\n", plan.From, plan.To)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), plan.String())
			return nil
		},
	}
}

// status is the output of the status command.
type status struct {
	Entity  string   `json:"entity"`
	Stored  int      `json:"stored"`
	Current int      `json:"current"`
	Plan    string   `json:"plan"`
	Tables  []string `json:"tables"`
}

func newStatusCmd(a *app) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Compare the stored version of an entity with its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(schemaPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()

			stored, err := sess.store.Get(cmd.Context(), sess.schema.Entity)
			if err != nil {
				return sysError(err)
			}
			st := status{
				Entity:  sess.schema.Entity,
				Stored:  stored,
				Current: sess.schema.Current,
				Tables:  entityTables(sess.schema),
			}
			if plan, err := migrate.NewPlan(stored, sess.schema.Current); err == nil && !plan.Empty() {
				st.Plan = plan.String()
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), st)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "entity:  %s\nstored:  %d\ncurrent: %d\ntables:  %s\n",
				st.Entity, st.Stored, st.Current, strings.Join(st.Tables, ", "))
			if st.Plan != "" {
				fmt.Fprintf(w, "plan:    %s\n", st.Plan)
			} else {
				fmt.Fprintln(w, "up to date")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (required)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	var (
		schemaPath  string
		metricsFile string
		to          int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate every table of an entity to a schema version",
		Long: "Migrate every table of the entity declared in the schema file from the\n" +
			"version stored in the registry to --to (default: the schema's current\n" +
			"version), then record the run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(schemaPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()

			target := sess.schema.Current
			if cmd.Flags().Changed("to") {
				target = to
				if _, err := sess.schema.Shape(target); err != nil {
					return userError(err)
				}
			}

			m := migrate.New(migrate.Config{
				Reader:   sess.store,
				Writer:   sess.store,
				Registry: sess.store,
				Logger:   sess.logger,
				Workers:  sess.settings.workers,
			})
			reports, runErr := m.MigrateEntityTo(cmd.Context(), sess.schema, target)

			if err := printReports(cmd.OutOrStdout(), a.flags.jsonMode, reports); err != nil {
				return err
			}
			if metricsFile != "" {
				if err := metrics.WriteTextfile(metricsFile); err != nil {
					return sysError(err)
				}
			}
			return classify(runErr)
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (required)")
	cmd.Flags().IntVar(&to, "to", 0, "target version (default: current version of the schema)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format to this path")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func printReports(w io.Writer, jsonMode bool, reports []types.Report) error {
	if jsonMode {
		runs := make([]types.Run, 0, len(reports))
		for _, r := range reports {
			runs = append(runs, types.RunOf(r))
		}
		return printJSON(w, runs)
	}
	for _, r := range reports {
		if r.NoOp() {
			fmt.Fprintf(w, "%s: already at %d\n", r.Table, r.Plan.From)
			continue
		}
		fmt.Fprintf(w, "%s: %s, %d rows read, %d written, %d fallbacks, %d dropped (run %s)\n",
			r.Table, r.Plan.String(), r.RowsRead, r.RowsWritten, len(r.Fallbacks), len(r.RowFailures), r.RunID)
		for _, f := range r.RowFailures {
			fmt.Fprintf(w, "  dropped %v\n", f)
		}
	}
	return nil
}

func newRebuildCmd(a *app) *cobra.Command {
	var (
		schemaPath string
		table      string
		empty      bool
	)
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recreate a table under the shape of its stored version",
		Long: "Drop and recreate a table under the shape of the entity's stored version,\n" +
			"keeping its rows unconverted, or with no rows when --empty is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(schemaPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()

			shape, err := storedShape(cmd, sess)
			if err != nil {
				return err
			}
			if table == "" {
				table = entityTables(sess.schema)[0]
			}
			m := migrate.New(migrate.Config{
				Reader:   sess.store,
				Writer:   sess.store,
				Registry: sess.store,
				Logger:   sess.logger,
			})

			if empty {
				if err := m.Reset(cmd.Context(), table, shape); err != nil {
					return classify(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: reset at %d\n", table, shape.Version)
				return nil
			}
			failures, err := m.Rebuild(cmd.Context(), table, shape)
			if err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: rebuilt at %d, %d dropped\n", table, shape.Version, len(failures))
			for _, f := range failures {
				fmt.Fprintf(cmd.OutOrStdout(), "  dropped %v\n", f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (required)")
	cmd.Flags().StringVar(&table, "table", "", "table to rebuild (default: first table of the entity)")
	cmd.Flags().BoolVar(&empty, "empty", false, "recreate the table with no rows")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// storedShape returns the shape of the version stored for the session's
// entity, or of the current version when nothing is stored yet.
func storedShape(cmd *cobra.Command, sess *session) (types.Shape, error) {
	version, err := sess.store.Get(cmd.Context(), sess.schema.Entity)
	if err != nil {
		return types.Shape{}, sysError(err)
	}
	if version == 0 {
		version = sess.schema.Current
	}
	shape, err := sess.schema.Shape(version)
	if err != nil {
		return types.Shape{}, userError(err)
	}
	return shape, nil
}

// entityTables returns the tables that store the schema's entity.
func entityTables(schema *types.Schema) []string {
	if len(schema.Tables) > 0 {
		return schema.Tables
	}
	return []string{schema.Entity}
}
