package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sqldeploy/sqldeploy"
)

const (
	configFileName    = "sqldeploy.yaml"
	defaultScriptsDir = "./scripts"
)

var flags struct {
	dsn          string
	driver       string
	dialect      string
	scriptsDir   string
	separator    string
	historyTable string
	batchTimeout time.Duration
	maxPasses    int
	noHistory    bool
	vars         []string
}

type fileConfig struct {
	Driver       string            `yaml:"driver"`
	DSN          string            `yaml:"dsn"`
	Dialect      string            `yaml:"dialect"`
	ScriptsDir   string            `yaml:"scripts_dir"`
	Separator    string            `yaml:"separator"`
	HistoryTable string            `yaml:"history_table"`
	BatchTimeout string            `yaml:"batch_timeout"`
	MaxPasses    int               `yaml:"max_passes"`
	Variables    map[string]string `yaml:"variables"`
}

// resolveConfig layers the configuration sources: defaults, then
// sqldeploy.yaml, then environment variables (.env loaded first), then
// flags. Later sources win.
func resolveConfig() (sqldeploy.Config, error) {
	_ = godotenv.Load()

	cfg := sqldeploy.Config{
		ScriptsDir: defaultScriptsDir,
	}

	if err := applyConfigFile(&cfg, configFileName); err != nil {
		return sqldeploy.Config{}, err
	}
	applyEnv(&cfg)
	if err := applyFlags(&cfg); err != nil {
		return sqldeploy.Config{}, err
	}

	if cfg.Driver == "" {
		cfg.Driver = inferDriver(cfg)
	}

	return cfg, nil
}

func applyConfigFile(cfg *sqldeploy.Config, path string) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(content, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	setString(&cfg.Driver, file.Driver)
	setString(&cfg.DSN, file.DSN)
	setString(&cfg.Dialect, file.Dialect)
	setString(&cfg.ScriptsDir, file.ScriptsDir)
	setString(&cfg.Separator, file.Separator)
	setString(&cfg.HistoryTable, file.HistoryTable)
	if file.MaxPasses > 0 {
		cfg.MaxPasses = file.MaxPasses
	}
	if file.BatchTimeout != "" {
		timeout, err := time.ParseDuration(file.BatchTimeout)
		if err != nil {
			return fmt.Errorf("failed to parse batch_timeout in %s: %w", path, err)
		}
		cfg.BatchTimeout = timeout
	}
	if len(file.Variables) > 0 {
		cfg.Variables = mergeVariables(cfg.Variables, file.Variables)
	}

	return nil
}

func applyEnv(cfg *sqldeploy.Config) {
	setString(&cfg.DSN, os.Getenv("SQLDEPLOY_DSN"))
	setString(&cfg.Driver, os.Getenv("SQLDEPLOY_DRIVER"))
	setString(&cfg.Dialect, os.Getenv("SQLDEPLOY_DIALECT"))
	setString(&cfg.ScriptsDir, os.Getenv("SQLDEPLOY_SCRIPTS_DIR"))
	setString(&cfg.Separator, os.Getenv("SQLDEPLOY_SEPARATOR"))
	setString(&cfg.HistoryTable, os.Getenv("SQLDEPLOY_HISTORY_TABLE"))

	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
}

func applyFlags(cfg *sqldeploy.Config) error {
	setString(&cfg.DSN, flags.dsn)
	setString(&cfg.Driver, flags.driver)
	setString(&cfg.Dialect, flags.dialect)
	setString(&cfg.ScriptsDir, flags.scriptsDir)
	setString(&cfg.Separator, flags.separator)
	setString(&cfg.HistoryTable, flags.historyTable)
	if flags.batchTimeout > 0 {
		cfg.BatchTimeout = flags.batchTimeout
	}
	if flags.maxPasses > 0 {
		cfg.MaxPasses = flags.maxPasses
	}
	if flags.noHistory {
		cfg.DisableHistory = true
	}

	if len(flags.vars) > 0 {
		parsed, err := parseVariables(flags.vars)
		if err != nil {
			return err
		}
		cfg.Variables = mergeVariables(cfg.Variables, parsed)
	}

	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func parseVariables(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected KEY=VALUE", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func mergeVariables(base, overlay map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overlay))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range overlay {
		merged[key] = value
	}
	return merged
}

// inferDriver fills in the driver when the dialect or DSN makes it obvious.
func inferDriver(cfg sqldeploy.Config) string {
	switch cfg.Dialect {
	case "postgres", "postgresql":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	}

	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		return "postgres"
	}
	return ""
}

func resolveDialect(cfg sqldeploy.Config) (sqldeploy.Dialect, error) {
	name := cfg.Dialect
	if name == "" {
		name = cfg.Driver
	}

	dialect, err := sqldeploy.DialectByName(name)
	if err != nil {
		return sqldeploy.Dialect{}, err
	}

	if cfg.Separator != "" {
		dialect.BatchSeparator = cfg.Separator
	}
	return dialect, nil
}
