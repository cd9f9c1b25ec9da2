package sqldeploy

import (
	"context"
	"sync"
	"time"
)

type mockSession struct {
	mu               sync.RWMutex
	ExecBatchFunc    func(ctx context.Context, sql string) (int64, error)
	QueryCatalogFunc func(ctx context.Context, ref ObjectRef) (bool, ObjectKind, error)
	BeginFunc        func(ctx context.Context) error
	CommitFunc       func() error
	RollbackFunc     func() error
	CloseFunc        func() error
	catalogObjects   map[string]ObjectKind
	executedBatches  []string
	begun            int
	committed        int
	rolledBack       int
	closed           bool
}

func newMockSession() *mockSession {
	return &mockSession{
		catalogObjects: make(map[string]ObjectKind),
	}
}

func (m *mockSession) ExecBatch(ctx context.Context, sql string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ExecBatchFunc != nil {
		return m.ExecBatchFunc(ctx, sql)
	}

	m.executedBatches = append(m.executedBatches, sql)
	return 0, nil
}

func (m *mockSession) QueryCatalog(ctx context.Context, ref ObjectRef) (bool, ObjectKind, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.QueryCatalogFunc != nil {
		return m.QueryCatalogFunc(ctx, ref)
	}

	kind, ok := m.catalogObjects[ref.String()]
	if !ok {
		return false, "", nil
	}
	return true, kind, nil
}

func (m *mockSession) Begin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}

	m.begun++
	return nil
}

func (m *mockSession) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CommitFunc != nil {
		return m.CommitFunc()
	}

	m.committed++
	return nil
}

func (m *mockSession) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RollbackFunc != nil {
		return m.RollbackFunc()
	}

	m.rolledBack++
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}

	m.closed = true
	return nil
}

func (m *mockSession) executed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	batches := make([]string, len(m.executedBatches))
	copy(batches, m.executedBatches)
	return batches
}

type mockDB struct {
	mu               sync.RWMutex
	SessionFunc      func(ctx context.Context) (Session, error)
	ExecBatchFunc    func(ctx context.Context, sql string) (int64, error)
	QueryCatalogFunc func(ctx context.Context, ref ObjectRef) (bool, ObjectKind, error)
	catalogObjects   map[string]ObjectKind
	sessions         []*mockSession
}

func newMockDB() *mockDB {
	return &mockDB{
		catalogObjects: make(map[string]ObjectKind),
	}
}

func (m *mockDB) Session(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SessionFunc != nil {
		return m.SessionFunc(ctx)
	}

	session := newMockSession()
	session.ExecBatchFunc = m.ExecBatchFunc
	session.QueryCatalogFunc = m.QueryCatalogFunc
	session.catalogObjects = m.catalogObjects
	m.sessions = append(m.sessions, session)
	return session, nil
}

func (m *mockDB) Close() error {
	return nil
}

func (m *mockDB) sessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *mockDB) executed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var batches []string
	for _, session := range m.sessions {
		batches = append(batches, session.executed()...)
	}
	return batches
}

type mockHistory struct {
	mu              sync.RWMutex
	InitFunc        func(ctx context.Context) error
	RecordFunc      func(ctx context.Context, runID string, result ApplyResult) error
	LastAppliedFunc func(ctx context.Context) (map[string]DeployRecord, error)
	ListFunc        func(ctx context.Context, limit int) ([]DeployRecord, error)
	records         []DeployRecord
}

func newMockHistory() *mockHistory {
	return &mockHistory{}
}

func (m *mockHistory) Init(ctx context.Context) error {
	if m.InitFunc != nil {
		return m.InitFunc(ctx)
	}
	return nil
}

func (m *mockHistory) Record(ctx context.Context, runID string, result ApplyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, runID, result)
	}

	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}

	m.records = append(m.records, DeployRecord{
		RunID:          runID,
		Script:         result.Script,
		Object:         result.Object.String(),
		Outcome:        result.Outcome,
		BatchesApplied: result.BatchesApplied,
		Checksum:       result.Checksum,
		Error:          errText,
		AppliedAt:      time.Now(),
	})
	return nil
}

func (m *mockHistory) LastApplied(ctx context.Context) (map[string]DeployRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.LastAppliedFunc != nil {
		return m.LastAppliedFunc(ctx)
	}

	latest := make(map[string]DeployRecord)
	for _, record := range m.records {
		if record.Outcome == OutcomeApplied {
			latest[record.Script] = record
		}
	}
	return latest, nil
}

func (m *mockHistory) List(ctx context.Context, limit int) ([]DeployRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}

	var records []DeployRecord
	for i := len(m.records) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, m.records[i])
	}
	return records, nil
}

func (m *mockHistory) recorded() []DeployRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]DeployRecord, len(m.records))
	copy(records, m.records)
	return records
}

type mockLogger struct {
	mu       sync.RWMutex
	DebugLog []string
	InfoLog  []string
	WarnLog  []string
	ErrorLog []string
}

func newMockLogger() *mockLogger {
	return &mockLogger{
		DebugLog: make([]string, 0),
		InfoLog:  make([]string, 0),
		WarnLog:  make([]string, 0),
		ErrorLog: make([]string, 0),
	}
}

func (m *mockLogger) Debug(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DebugLog = append(m.DebugLog, msg)
}

func (m *mockLogger) Info(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InfoLog = append(m.InfoLog, msg)
}

func (m *mockLogger) Warn(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WarnLog = append(m.WarnLog, msg)
}

func (m *mockLogger) Error(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorLog = append(m.ErrorLog, msg)
}

func (m *mockLogger) warnings() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := make([]string, len(m.WarnLog))
	copy(logs, m.WarnLog)
	return logs
}
