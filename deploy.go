package sqldeploy

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"
)

var historyTablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type Config struct {
	Driver         string
	DSN            string
	Dialect        string
	ScriptsDir     string
	ScriptsFS      fs.FS
	Separator      string
	Variables      map[string]string
	BatchTimeout   time.Duration
	MaxPasses      int
	HistoryTable   string
	DisableHistory bool
	Logger         Logger
}

func New(cfg Config) (Deployer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.Driver == "" {
		return nil, fmt.Errorf("%w: Driver is required", ErrInvalidConfig)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: DSN is required", ErrInvalidConfig)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	d, err := newDeployer(db, cfg, true)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func NewWithDB(db *sql.DB, cfg Config) (Deployer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return newDeployer(db, cfg, false)
}

func validateConfig(cfg Config) error {
	if cfg.ScriptsDir == "" && cfg.ScriptsFS == nil {
		return fmt.Errorf("%w: either ScriptsDir or ScriptsFS must be provided", ErrInvalidConfig)
	}

	if cfg.Dialect == "" && cfg.Driver == "" {
		return fmt.Errorf("%w: Dialect or Driver is required", ErrInvalidConfig)
	}

	name := cfg.Dialect
	if name == "" {
		name = cfg.Driver
	}
	if _, err := DialectByName(name); err != nil {
		return err
	}

	if cfg.HistoryTable != "" && !historyTablePattern.MatchString(cfg.HistoryTable) {
		return fmt.Errorf("%w: invalid history table name %q", ErrInvalidConfig, cfg.HistoryTable)
	}

	return nil
}

func newDeployer(db *sql.DB, cfg Config, owned bool) (Deployer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = newDefaultLogger()
	}

	name := cfg.Dialect
	if name == "" {
		name = cfg.Driver
	}
	dialect, err := DialectByName(name)
	if err != nil {
		return nil, err
	}
	if cfg.Separator != "" {
		dialect.BatchSeparator = cfg.Separator
	}

	filesystem := cfg.ScriptsFS
	root := "."
	if filesystem == nil {
		filesystem = os.DirFS(cfg.ScriptsDir)
	} else if cfg.ScriptsDir != "" {
		root = cfg.ScriptsDir
	}

	scripts, err := newLoader(filesystem).loadAll(root)
	if err != nil {
		return nil, err
	}

	sqldb := newSQLDB(db, dialect, logger, owned)

	var history History
	if !cfg.DisableHistory {
		history = newSQLHistory(db, cfg.HistoryTable, dialect, logger)
	}

	a := newApplier(dialect, cfg.Variables, cfg.BatchTimeout, logger)

	return &deployer{
		db:      sqldb,
		runner:  newRunner(sqldb, a, history, cfg.MaxPasses, logger),
		history: history,
		scripts: scripts,
		logger:  logger,
	}, nil
}

type deployer struct {
	db      DB
	runner  *runner
	history History
	scripts []Script
	logger  Logger
}

func (d *deployer) Deploy(ctx context.Context) ([]ApplyResult, error) {
	if err := d.initHistory(ctx); err != nil {
		return nil, err
	}
	return d.runner.deploy(ctx, d.scripts)
}

func (d *deployer) Run(ctx context.Context, mode TxnMode) ([]ApplyResult, error) {
	if err := d.initHistory(ctx); err != nil {
		return nil, err
	}
	return d.runner.run(ctx, d.scripts, mode)
}

func (d *deployer) Drop(ctx context.Context) ([]ApplyResult, error) {
	return d.runner.drop(ctx, d.scripts)
}

func (d *deployer) Status(ctx context.Context) ([]ObjectStatus, error) {
	var lastApplied map[string]DeployRecord
	if d.history != nil {
		if err := d.history.Init(ctx); err != nil {
			return nil, err
		}

		applied, err := d.history.LastApplied(ctx)
		if err != nil {
			return nil, err
		}
		lastApplied = applied
	}

	session, err := d.db.Session(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	var statuses []ObjectStatus
	for _, script := range d.scripts {
		status := ObjectStatus{
			Script:   script.Name,
			Object:   script.Object,
			Checksum: script.Checksum,
		}

		if !script.Object.IsZero() {
			exists, kind, err := session.QueryCatalog(ctx, script.Object)
			if err != nil {
				return nil, err
			}
			status.Exists = exists
			status.CatalogKind = kind
		}

		if record, ok := lastApplied[script.Name]; ok {
			appliedAt := record.AppliedAt
			status.LastApplied = &appliedAt
			status.LastChecksum = record.Checksum

			if record.Checksum != script.Checksum {
				d.logger.Warn("script changed since last apply", "script", script.Name)
			}
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (d *deployer) History(ctx context.Context, limit int) ([]DeployRecord, error) {
	if d.history == nil {
		return nil, nil
	}

	if err := d.history.Init(ctx); err != nil {
		return nil, err
	}
	return d.history.List(ctx, limit)
}

func (d *deployer) Close() error {
	return d.db.Close()
}

func (d *deployer) initHistory(ctx context.Context) error {
	if d.history == nil {
		return nil
	}
	return d.history.Init(ctx)
}
