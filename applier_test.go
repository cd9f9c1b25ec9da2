package sqldeploy

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestApplierApply(t *testing.T) {
	session := newMockSession()
	a := newApplier(MSSQL(), nil, 0, newMockLogger())

	script := Script{
		Name: "procedures/store.usp_load.sql",
		SQL:  "SET NOCOUNT ON\nGO\nSELECT 1\nGO\nSELECT 2",
	}

	result := a.apply(context.Background(), session, script)

	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected OutcomeApplied, got %v (err: %v)", result.Outcome, result.Err)
	}
	if result.BatchesApplied != 3 {
		t.Fatalf("expected 3 batches applied, got %d", result.BatchesApplied)
	}

	want := []string{"SET NOCOUNT ON", "SELECT 1", "SELECT 2"}
	if !reflect.DeepEqual(session.executed(), want) {
		t.Fatalf("expected batches %q, got %q", want, session.executed())
	}
}

func TestApplierFirstFailureAborts(t *testing.T) {
	session := newMockSession()

	var calls int
	execErr := errors.New("incorrect syntax near THROW")
	session.ExecBatchFunc = func(ctx context.Context, sql string) (int64, error) {
		calls++
		if calls == 2 {
			return 0, execErr
		}
		return 0, nil
	}

	a := newApplier(MSSQL(), nil, 0, newMockLogger())

	script := Script{
		Name: "procedures/store.usp_fail.sql",
		SQL:  "SET X ON\nGO\nCREATE PROCEDURE P AS THROW 1,'e',1;\nGO\nSELECT 'never'",
	}

	result := a.apply(context.Background(), session, script)

	if result.Outcome != OutcomeFailed {
		t.Fatalf("expected OutcomeFailed, got %v", result.Outcome)
	}
	if result.BatchesApplied != 1 {
		t.Fatalf("expected 1 batch applied before failure, got %d", result.BatchesApplied)
	}
	if calls != 2 {
		t.Fatalf("expected execution to stop after batch 2, got %d calls", calls)
	}

	var batchErr *BatchError
	if !errors.As(result.Err, &batchErr) {
		t.Fatalf("expected *BatchError, got %T", result.Err)
	}
	if batchErr.Batch != 2 {
		t.Errorf("expected failing batch 2, got %d", batchErr.Batch)
	}
	if batchErr.Script != script.Name {
		t.Errorf("expected script %q, got %q", script.Name, batchErr.Script)
	}
	if !errors.Is(result.Err, execErr) {
		t.Errorf("expected wrapped execution error, got %v", result.Err)
	}
	if batchErr.Timeout() {
		t.Error("expected Timeout() to be false for a plain execution error")
	}
}

func TestApplierCancellation(t *testing.T) {
	t.Run("started batch finishes after cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		session := newMockSession()
		a := newApplier(MSSQL(), nil, 0, newMockLogger())

		result := a.apply(ctx, session, Script{Name: "v.sql", SQL: "SELECT 1"})

		if result.Outcome != OutcomeApplied {
			t.Fatalf("expected single batch to finish, got %v (err: %v)", result.Outcome, result.Err)
		}
		if len(session.executed()) != 1 {
			t.Fatalf("expected 1 executed batch, got %d", len(session.executed()))
		}
	})

	t.Run("cancellation honored between batches", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		session := newMockSession()
		var calls int
		session.ExecBatchFunc = func(execCtx context.Context, sql string) (int64, error) {
			calls++
			cancel()
			return 0, nil
		}

		a := newApplier(MSSQL(), nil, 0, newMockLogger())

		script := Script{Name: "v.sql", SQL: "SELECT 1\nGO\nSELECT 2\nGO\nSELECT 3"}
		result := a.apply(ctx, session, script)

		if calls != 1 {
			t.Fatalf("expected execution to stop after batch 1, got %d calls", calls)
		}
		if result.Outcome != OutcomeFailed {
			t.Fatalf("expected OutcomeFailed, got %v", result.Outcome)
		}
		if result.BatchesApplied != 1 {
			t.Fatalf("expected 1 batch applied, got %d", result.BatchesApplied)
		}
		if !errors.Is(result.Err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", result.Err)
		}

		var batchErr *BatchError
		if !errors.As(result.Err, &batchErr) {
			t.Fatalf("expected *BatchError, got %T", result.Err)
		}
		if batchErr.Batch != 2 {
			t.Errorf("expected batch 2 to report the cancellation, got %d", batchErr.Batch)
		}
	})
}

func TestApplierBatchTimeout(t *testing.T) {
	session := newMockSession()
	session.ExecBatchFunc = func(ctx context.Context, sql string) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	a := newApplier(MSSQL(), nil, 10*time.Millisecond, newMockLogger())

	result := a.apply(context.Background(), session, Script{Name: "slow.sql", SQL: "WAITFOR DELAY '00:01'"})

	if result.Outcome != OutcomeFailed {
		t.Fatalf("expected OutcomeFailed, got %v", result.Outcome)
	}
	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", result.Err)
	}

	var batchErr *BatchError
	if !errors.As(result.Err, &batchErr) {
		t.Fatalf("expected *BatchError, got %T", result.Err)
	}
	if !batchErr.Timeout() {
		t.Error("expected Timeout() to report true")
	}
}

func TestApplierBatchContextDetachedFromCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := newMockSession()
	var sawCancel bool
	session.ExecBatchFunc = func(execCtx context.Context, sql string) (int64, error) {
		select {
		case <-execCtx.Done():
			sawCancel = true
		default:
		}
		return 0, nil
	}

	a := newApplier(MSSQL(), nil, 0, newMockLogger())
	a.apply(ctx, session, Script{Name: "v.sql", SQL: "SELECT 1"})

	if sawCancel {
		t.Fatal("batch execution context must not carry caller cancellation")
	}
}

func TestApplierVariables(t *testing.T) {
	session := newMockSession()
	vars := map[string]string{"role": "deployer"}
	a := newApplier(MSSQL(), vars, 0, newMockLogger())

	script := Script{Name: "grant.sql", SQL: "SET ROLE $(role)\nGO\nSELECT '$(role)'"}
	result := a.apply(context.Background(), session, script)

	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected OutcomeApplied, got %v", result.Outcome)
	}

	want := []string{"SET ROLE deployer", "SELECT 'deployer'"}
	if !reflect.DeepEqual(session.executed(), want) {
		t.Fatalf("expected batches %q, got %q", want, session.executed())
	}
}

func TestApplierEmptyScript(t *testing.T) {
	session := newMockSession()
	a := newApplier(MSSQL(), nil, 0, newMockLogger())

	result := a.apply(context.Background(), session, Script{Name: "empty.sql", SQL: "  \nGO\n  "})

	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected OutcomeApplied for empty script, got %v", result.Outcome)
	}
	if result.BatchesApplied != 0 {
		t.Fatalf("expected 0 batches applied, got %d", result.BatchesApplied)
	}
	if len(session.executed()) != 0 {
		t.Fatalf("expected no executed batches, got %d", len(session.executed()))
	}
}
