package sqldeploy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const defaultHistoryTable = "deploy_history"

// sqlHistory keeps the audit ledger of durable script outcomes. It writes
// through the pool directly; ledger rows are bookkeeping, not part of any
// script's session or transaction.
type sqlHistory struct {
	db      *sql.DB
	table   string
	dialect Dialect
	logger  Logger
}

func newSQLHistory(db *sql.DB, table string, dialect Dialect, logger Logger) *sqlHistory {
	if table == "" {
		table = defaultHistoryTable
	}
	return &sqlHistory{
		db:      db,
		table:   table,
		dialect: dialect,
		logger:  logger,
	}
}

func (h *sqlHistory) Init(ctx context.Context) error {
	var ddl string
	switch h.dialect.Name {
	case "postgres":
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			script TEXT NOT NULL,
			object TEXT NOT NULL,
			outcome TEXT NOT NULL,
			batches INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			error TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL
		)`, h.table)
	case "sqlite":
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			script TEXT NOT NULL,
			object TEXT NOT NULL,
			outcome TEXT NOT NULL,
			batches INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			error TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)`, h.table)
	case "mssql":
		ddl = fmt.Sprintf(`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'%s') AND type = 'U')
		CREATE TABLE %s (
			id INT IDENTITY(1,1) PRIMARY KEY,
			run_id NVARCHAR(64) NOT NULL,
			script NVARCHAR(512) NOT NULL,
			object NVARCHAR(512) NOT NULL,
			outcome NVARCHAR(32) NOT NULL,
			batches INT NOT NULL,
			checksum NVARCHAR(128) NOT NULL,
			error NVARCHAR(MAX) NOT NULL,
			applied_at DATETIME2 NOT NULL
		)`, h.table, h.table)
	default:
		return fmt.Errorf("%w: no history ledger for dialect %q", ErrInvalidConfig, h.dialect.Name)
	}

	if _, err := h.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	h.logger.Info("initialized deploy history", "table", h.table)
	return nil
}

func (h *sqlHistory) Record(ctx context.Context, runID string, result ApplyResult) error {
	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (run_id, script, object, outcome, batches, checksum, error, applied_at) VALUES (%s)",
		h.table, h.placeholders(8),
	)

	_, err := h.db.ExecContext(ctx, query,
		runID,
		result.Script,
		result.Object.String(),
		result.Outcome.String(),
		result.BatchesApplied,
		result.Checksum,
		errText,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	h.logger.Debug("recorded outcome", "script", result.Script, "outcome", result.Outcome)
	return nil
}

// LastApplied returns the most recent successful ledger row per script.
func (h *sqlHistory) LastApplied(ctx context.Context) (map[string]DeployRecord, error) {
	query := fmt.Sprintf(
		"SELECT run_id, script, object, outcome, batches, checksum, error, applied_at FROM %s WHERE outcome = 'applied' ORDER BY id",
		h.table,
	)

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer rows.Close()

	latest := make(map[string]DeployRecord)
	for rows.Next() {
		record, err := scanDeployRecord(rows)
		if err != nil {
			return nil, err
		}
		latest[record.Script] = record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return latest, nil
}

func (h *sqlHistory) List(ctx context.Context, limit int) ([]DeployRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var query string
	if h.dialect.Name == "mssql" {
		query = fmt.Sprintf(
			"SELECT TOP %d run_id, script, object, outcome, batches, checksum, error, applied_at FROM %s ORDER BY id DESC",
			limit, h.table,
		)
	} else {
		query = fmt.Sprintf(
			"SELECT run_id, script, object, outcome, batches, checksum, error, applied_at FROM %s ORDER BY id DESC LIMIT %d",
			h.table, limit,
		)
	}

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer rows.Close()

	var records []DeployRecord
	for rows.Next() {
		record, err := scanDeployRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return records, nil
}

func (h *sqlHistory) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		switch h.dialect.Name {
		case "postgres":
			parts[i] = fmt.Sprintf("$%d", i+1)
		case "mssql":
			parts[i] = fmt.Sprintf("@p%d", i+1)
		default:
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func scanDeployRecord(rows *sql.Rows) (DeployRecord, error) {
	var record DeployRecord
	var outcome string
	var appliedAt sql.NullTime

	err := rows.Scan(
		&record.RunID,
		&record.Script,
		&record.Object,
		&outcome,
		&record.BatchesApplied,
		&record.Checksum,
		&record.Error,
		&appliedAt,
	)
	if err != nil {
		return DeployRecord{}, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	record.Outcome = parseOutcome(outcome)
	if appliedAt.Valid {
		record.AppliedAt = appliedAt.Time
	}
	return record, nil
}

func parseOutcome(s string) Outcome {
	switch s {
	case "applied":
		return OutcomeApplied
	case "failed":
		return OutcomeFailed
	case "skipped":
		return OutcomeSkipped
	}
	return OutcomeNotAttempted
}
