package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize strata configuration and storage",
		Long: "Create configuration and data directories, write a default config.yaml\n" +
			"if none exists, then initialize the storage backend.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, local)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "keep configuration and data under the current directory ("+
		paths.LocalConfigDirName+", "+paths.LocalDataDirName+")")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, local bool) error {
	// data_dir is written to a new config.yaml only when it was chosen
	// explicitly; otherwise later runs keep resolving the platform default.
	dataDir := a.flags.dataDir
	if local {
		if a.flags.configDir == "" {
			dir, err := paths.LocalConfigDir(".")
			if err != nil {
				return sysError(err)
			}
			a.flags.configDir = dir
		}
		if dataDir == "" {
			dir, err := paths.LocalDataDir(".")
			if err != nil {
				return sysError(err)
			}
			dataDir = dir
		}
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create config directory: %w", err))
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), dataDir); err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}
	a.flags.configDir = configDir
	if a.flags.dataDir == "" {
		a.flags.dataDir = dataDir
	}

	s, err := a.resolve()
	if err != nil {
		return err
	}
	st, err := openStore(s.storage)
	if err != nil {
		return err
	}
	if err := st.Detach(); err != nil {
		return sysError(fmt.Errorf("finalize storage: %w", err))
	}

	if a.flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"config_dir": s.configDir,
			"data_dir":   s.storage.DataDir,
			"backend":    s.storage.Backend,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "strata initialized (config: %s, data: %s, backend: %s)\n",
		s.configDir, s.storage.DataDir, s.storage.Backend)
	return nil
}
