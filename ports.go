package sqldeploy

import "context"

type Deployer interface {
	Deploy(ctx context.Context) ([]ApplyResult, error)
	Run(ctx context.Context, mode TxnMode) ([]ApplyResult, error)
	Drop(ctx context.Context) ([]ApplyResult, error)
	Status(ctx context.Context) ([]ObjectStatus, error)
	History(ctx context.Context, limit int) ([]DeployRecord, error)
	Close() error
}

// Session is a single database session. All batches executed on it share
// connection-scoped state, and Close never hands that state to another
// session.
type Session interface {
	ExecBatch(ctx context.Context, sql string) (int64, error)
	// QueryCatalog runs one catalog lookup per call, never cached.
	QueryCatalog(ctx context.Context, ref ObjectRef) (bool, ObjectKind, error)
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error
	Close() error
}

type DB interface {
	Session(ctx context.Context) (Session, error)
	Close() error
}

type History interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, runID string, result ApplyResult) error
	LastApplied(ctx context.Context) (map[string]DeployRecord, error)
	List(ctx context.Context, limit int) ([]DeployRecord, error)
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
