package sqldeploy

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const sessionResetTimeout = 5 * time.Second

type sqlDB struct {
	db      *sql.DB
	dialect Dialect
	logger  Logger
	owned   bool
}

func newSQLDB(db *sql.DB, dialect Dialect, logger Logger, owned bool) *sqlDB {
	return &sqlDB{
		db:      db,
		dialect: dialect,
		logger:  logger,
		owned:   owned,
	}
}

func (d *sqlDB) Session(ctx context.Context) (Session, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &sqlSession{conn: conn, dialect: d.dialect, logger: d.logger}, nil
}

func (d *sqlDB) Close() error {
	if !d.owned {
		return nil
	}
	return d.db.Close()
}

// sqlSession pins one pooled connection so every batch of a script sees the
// same connection-scoped state.
type sqlSession struct {
	conn    *sql.Conn
	dialect Dialect
	logger  Logger
	tx      *sql.Tx
}

func (s *sqlSession) ExecBatch(ctx context.Context, batch string) (int64, error) {
	var result sql.Result
	var err error

	if s.tx != nil {
		result, err = s.tx.ExecContext(ctx, batch)
	} else {
		result, err = s.conn.ExecContext(ctx, batch)
	}
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		// DDL statements often report no row count.
		return 0, nil
	}
	return affected, nil
}

func (s *sqlSession) QueryCatalog(ctx context.Context, ref ObjectRef) (bool, ObjectKind, error) {
	query, args, err := buildCatalogQuery(s.dialect, ref)
	if err != nil {
		return false, "", err
	}

	var row *sql.Row
	if s.tx != nil {
		row = s.tx.QueryRowContext(ctx, query, args...)
	} else {
		row = s.conn.QueryRowContext(ctx, query, args...)
	}

	var stored string
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return true, catalogKind(stored), nil
}

func (s *sqlSession) Begin(ctx context.Context) error {
	if s.tx != nil {
		return fmt.Errorf("%w: transaction already open", ErrTransactionFailed)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	s.tx = tx
	return nil
}

func (s *sqlSession) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("%w: no open transaction", ErrTransactionFailed)
	}

	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

func (s *sqlSession) Rollback() error {
	if s.tx == nil {
		return nil
	}

	err := s.tx.Rollback()
	s.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

// Close rolls back any open transaction and keeps connection-scoped state
// out of later sessions. Dialects with a reset statement run it before the
// connection goes back to the pool; dialects without one have the physical
// connection discarded instead of reused.
func (s *sqlSession) Close() error {
	if s.tx != nil {
		_ = s.Rollback()
	}

	if s.dialect.SessionReset != "" {
		ctx, cancel := context.WithTimeout(context.Background(), sessionResetTimeout)
		defer cancel()

		_, err := s.conn.ExecContext(ctx, s.dialect.SessionReset)
		if err == nil {
			return s.conn.Close()
		}
		s.logger.Warn("session reset failed, discarding connection", "error", err)
	}

	// An unreset connection must not return to the pool.
	_ = s.conn.Raw(func(any) error { return driver.ErrBadConn })

	if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
