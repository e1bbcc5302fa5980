package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the strata release version.
const Version = "0.3.0"

const modulePath = "github.com/mesh-intelligence/strata"

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the strata version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": Version, "module": modulePath})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "strata v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
