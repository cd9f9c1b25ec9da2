package sqldeploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const historyWriteTimeout = 30 * time.Second

type runner struct {
	db        DB
	applier   *applier
	history   History
	maxPasses int
	logger    Logger
}

func newRunner(db DB, applier *applier, history History, maxPasses int, logger Logger) *runner {
	return &runner{
		db:        db,
		applier:   applier,
		history:   history,
		maxPasses: maxPasses,
		logger:    logger,
	}
}

// run applies scripts strictly in the given order, one attempt each. The
// returned slice always has one entry per input script; scripts never
// reached keep OutcomeNotAttempted.
func (r *runner) run(ctx context.Context, scripts []Script, mode TxnMode) ([]ApplyResult, error) {
	runID := uuid.NewString()
	r.logger.Info("starting run", "run_id", runID, "mode", mode, "scripts", len(scripts))

	if mode == TxnAllOrNothing {
		return r.runAllOrNothing(ctx, runID, scripts)
	}
	return r.runPerScript(ctx, runID, scripts)
}

func (r *runner) runPerScript(ctx context.Context, runID string, scripts []Script) ([]ApplyResult, error) {
	results := pendingResults(scripts)

	var failed int
	var firstErr error

	for i, script := range scripts {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("run canceled", "run_id", runID, "remaining", len(scripts)-i)
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		r.logger.Info("applying script", "script", script.Name)
		results[i] = r.applyOne(ctx, script)

		if results[i].Outcome == OutcomeFailed {
			failed++
			if firstErr == nil {
				firstErr = results[i].Err
			}
			r.logger.Error("script failed", "script", script.Name, "error", results[i].Err)
			continue
		}

		r.logger.Info("applied script", "script", script.Name, "batches", results[i].BatchesApplied)
	}

	if err := r.recordAll(runID, results); err != nil {
		return results, err
	}

	if failed > 0 {
		return results, fmt.Errorf("%d of %d scripts failed: %w", failed, len(scripts), firstErr)
	}
	if firstErr != nil {
		return results, firstErr
	}
	return results, nil
}

func (r *runner) runAllOrNothing(ctx context.Context, runID string, scripts []Script) ([]ApplyResult, error) {
	results := pendingResults(scripts)

	session, err := r.db.Session(ctx)
	if err != nil {
		return results, err
	}
	defer session.Close()

	if err := session.Begin(ctx); err != nil {
		return results, err
	}

	for i, script := range scripts {
		if err := ctx.Err(); err != nil {
			_ = session.Rollback()
			r.logger.Warn("run canceled, rolled back", "run_id", runID, "remaining", len(scripts)-i)
			return results, err
		}

		r.logger.Info("applying script", "script", script.Name)
		results[i] = r.applier.apply(ctx, session, script)

		if results[i].Outcome == OutcomeFailed {
			_ = session.Rollback()
			r.logger.Error("script failed, rolled back run", "script", script.Name, "error", results[i].Err)

			// Only the failing script's outcome is durable after the
			// rollback, so it is the only one the ledger records.
			if err := r.recordAll(runID, results[i:i+1]); err != nil {
				return results, err
			}
			return results, fmt.Errorf("run rolled back: %w", results[i].Err)
		}
	}

	if err := session.Commit(); err != nil {
		return results, err
	}

	if err := r.recordAll(runID, results); err != nil {
		return results, err
	}
	return results, nil
}

// deploy applies scripts with per-script transactions and retries failures
// in further passes. A script whose objects depend on objects created later
// in the order succeeds on a later pass, so script authors never maintain
// explicit ordering metadata. Connection failures never re-enter the retry
// set, and the loop stops when a pass fixes nothing.
func (r *runner) deploy(ctx context.Context, scripts []Script) ([]ApplyResult, error) {
	runID := uuid.NewString()

	maxPasses := r.maxPasses
	if maxPasses <= 0 {
		maxPasses = len(scripts)
	}

	results := pendingResults(scripts)

	todo := make([]int, len(scripts))
	for i := range todo {
		todo[i] = i
	}

	r.logger.Info("starting deploy", "run_id", runID, "scripts", len(scripts))

	for pass := 1; pass <= maxPasses && len(todo) > 0; pass++ {
		r.logger.Info("deploy pass", "run_id", runID, "pass", pass, "scripts", len(todo))

		var failed, retry []int
		for _, i := range todo {
			if err := ctx.Err(); err != nil {
				r.logger.Warn("deploy canceled", "run_id", runID)
				if recErr := r.recordAll(runID, results); recErr != nil {
					return results, recErr
				}
				return results, err
			}

			results[i] = r.applyOne(ctx, scripts[i])
			if results[i].Outcome != OutcomeFailed {
				r.logger.Info("applied script", "script", scripts[i].Name, "batches", results[i].BatchesApplied)
				continue
			}

			failed = append(failed, i)
			if errors.Is(results[i].Err, ErrConnection) {
				r.logger.Error("connection error, not retrying", "script", scripts[i].Name, "error", results[i].Err)
				continue
			}
			r.logger.Warn("script failed, will retry next pass", "script", scripts[i].Name, "error", results[i].Err)
			retry = append(retry, i)
		}

		if len(failed) == len(todo) {
			r.logger.Error("deploy pass made no progress", "run_id", runID, "failing", len(failed))
			break
		}
		todo = retry
	}

	if err := r.recordAll(runID, results); err != nil {
		return results, err
	}

	var failedCount int
	var firstErr error
	for _, result := range results {
		if result.Outcome == OutcomeFailed {
			failedCount++
			if firstErr == nil {
				firstErr = result.Err
			}
		}
	}
	if failedCount > 0 {
		return results, fmt.Errorf("%d of %d scripts failed after retries: %w", failedCount, len(scripts), firstErr)
	}
	return results, nil
}

// applyOne runs a single script on a fresh session inside its own
// transaction.
func (r *runner) applyOne(ctx context.Context, script Script) ApplyResult {
	failure := func(err error) ApplyResult {
		return ApplyResult{
			Script:   script.Name,
			Object:   script.Object,
			Checksum: script.Checksum,
			Outcome:  OutcomeFailed,
			Err:      err,
		}
	}

	session, err := r.db.Session(ctx)
	if err != nil {
		return failure(err)
	}
	defer session.Close()

	if err := session.Begin(ctx); err != nil {
		return failure(err)
	}

	result := r.applier.apply(ctx, session, script)

	if result.Outcome == OutcomeApplied {
		if err := session.Commit(); err != nil {
			result.Outcome = OutcomeFailed
			result.Err = err
		}
	} else if err := session.Rollback(); err != nil {
		r.logger.Warn("rollback failed", "script", script.Name, "error", err)
	}

	return result
}

// drop removes every script's target object in reverse deploy order,
// checking the catalog before each drop. Absent objects are skipped, and
// failures other than connection errors retry in further passes so
// dependent objects can come down first.
func (r *runner) drop(ctx context.Context, scripts []Script) ([]ApplyResult, error) {
	runID := uuid.NewString()

	ordered := make([]Script, len(scripts))
	for i, script := range scripts {
		ordered[len(scripts)-1-i] = script
	}

	results := pendingResults(ordered)

	session, err := r.db.Session(ctx)
	if err != nil {
		return results, err
	}
	defer session.Close()

	maxPasses := r.maxPasses
	if maxPasses <= 0 {
		maxPasses = len(ordered)
	}

	todo := make([]int, len(ordered))
	for i := range todo {
		todo[i] = i
	}

	r.logger.Info("starting drop", "run_id", runID, "scripts", len(ordered))

	for pass := 1; pass <= maxPasses && len(todo) > 0; pass++ {
		var failed, retry []int
		for _, i := range todo {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			results[i] = r.dropOne(ctx, session, ordered[i])
			if results[i].Outcome == OutcomeFailed {
				failed = append(failed, i)
				if !errors.Is(results[i].Err, ErrConnection) {
					retry = append(retry, i)
				}
			}
		}

		if len(failed) == len(todo) {
			break
		}
		todo = retry
	}

	var failedCount int
	var firstErr error
	for _, result := range results {
		if result.Outcome == OutcomeFailed {
			failedCount++
			if firstErr == nil {
				firstErr = result.Err
			}
		}
	}
	if failedCount > 0 {
		return results, fmt.Errorf("%d of %d objects failed to drop: %w", failedCount, len(ordered), firstErr)
	}
	return results, nil
}

func (r *runner) dropOne(ctx context.Context, session Session, script Script) ApplyResult {
	result := ApplyResult{
		Script:   script.Name,
		Object:   script.Object,
		Checksum: script.Checksum,
	}

	if script.Object.IsZero() {
		r.logger.Warn("script has no object target, skipping", "script", script.Name)
		result.Outcome = OutcomeSkipped
		return result
	}

	exists, kind, err := session.QueryCatalog(ctx, script.Object)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	if !exists {
		r.logger.Debug("object already absent", "object", script.Object.String())
		result.Outcome = OutcomeSkipped
		return result
	}

	stmt := dropStatement(script.Object, kind)
	r.logger.Info("dropping object", "object", script.Object.String(), "kind", kind)

	if _, err := r.applier.execBatch(session, stmt); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = &BatchError{Script: script.Name, Batch: 1, Err: err}
		return result
	}

	result.Outcome = OutcomeApplied
	result.BatchesApplied = 1
	return result
}

// dropStatement builds the drop DDL. Names go in unquoted, matching how
// the scripts themselves author them.
func dropStatement(ref ObjectRef, kind ObjectKind) string {
	if kind == "" {
		kind = ref.Kind
	}
	return fmt.Sprintf("DROP %s %s", strings.ToUpper(string(kind)), ref.String())
}

func pendingResults(scripts []Script) []ApplyResult {
	results := make([]ApplyResult, len(scripts))
	for i, script := range scripts {
		results[i] = ApplyResult{
			Script:   script.Name,
			Object:   script.Object,
			Checksum: script.Checksum,
		}
	}
	return results
}

// recordAll writes durable outcomes to the ledger. It runs on its own
// context so bookkeeping still lands when the run's context is canceled.
func (r *runner) recordAll(runID string, results []ApplyResult) error {
	if r.history == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	for _, result := range results {
		if result.Outcome != OutcomeApplied && result.Outcome != OutcomeFailed {
			continue
		}

		if err := r.history.Record(ctx, runID, result); err != nil {
			return fmt.Errorf("failed to record result for %s: %w", result.Script, err)
		}
	}
	return nil
}
