package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/strata/internal/paths"
	"github.com/mesh-intelligence/strata/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeyWorkers   = "workers"
	cfgKeyBackup    = "backup"
	cfgKeyLogLevel  = "log_level"
	cfgKeyLogFormat = "log_format"

	envPrefix = "STRATA"

	defaultBackend   = types.BackendSQLite
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend   string `yaml:"backend"`
	DataDir   string `yaml:"data_dir,omitempty"`
	Workers   int    `yaml:"workers,omitempty"`
	Backup    bool   `yaml:"backup"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// settings is the resolved configuration of one command invocation.
type settings struct {
	configDir string
	storage   types.Config
	workers   int
	logLevel  string
	logFormat string
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns nil.
func writeConfigIfMissing(path, dataDir string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config file: %w", err)
	}

	cfg := configFile{
		Backend:   defaultBackend,
		DataDir:   dataDir,
		Backup:    true,
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default file on first run. STRATA_* environment
// variables override file values.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), ""); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyWorkers, 0)
	v.SetDefault(cfgKeyBackup, true)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogFormat, defaultLogFormat)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// resolve resolves directories and config values for this invocation.
func (a *app) resolve() (settings, error) {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return settings{}, sysError(err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return settings{}, sysError(err)
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return settings{}, sysError(err)
	}

	s := settings{
		configDir: configDir,
		storage: types.Config{
			Backend: v.GetString(cfgKeyBackend),
			DataDir: dataDir,
			Backup:  v.GetBool(cfgKeyBackup),
		},
		workers:   v.GetInt(cfgKeyWorkers),
		logLevel:  v.GetString(cfgKeyLogLevel),
		logFormat: v.GetString(cfgKeyLogFormat),
	}
	if err := s.storage.Validate(); err != nil {
		return settings{}, userError(fmt.Errorf("config %s: %w", filepath.Join(configDir, configFileExt), err))
	}
	return s, nil
}
