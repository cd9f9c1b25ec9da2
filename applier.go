package sqldeploy

import (
	"context"
	"time"
)

type applier struct {
	dialect      Dialect
	variables    map[string]string
	batchTimeout time.Duration
	logger       Logger
}

func newApplier(dialect Dialect, variables map[string]string, batchTimeout time.Duration, logger Logger) *applier {
	return &applier{
		dialect:      dialect,
		variables:    variables,
		batchTimeout: batchTimeout,
		logger:       logger,
	}
}

// apply executes every batch of one script in order on the given session
// and stops at the first failure. Script text is executed as-is; whether it
// drops, creates or alters anything is the script author's business.
func (a *applier) apply(ctx context.Context, session Session, script Script) ApplyResult {
	start := time.Now()
	result := ApplyResult{
		Script:   script.Name,
		Object:   script.Object,
		Checksum: script.Checksum,
	}

	batches := a.dialect.SplitBatches(InsertVariables(script.SQL, a.variables))

	for i, batch := range batches {
		// Cancellation is honored between batches; a started batch is the
		// atomic unit and always finishes.
		if i > 0 {
			if err := ctx.Err(); err != nil {
				result.Outcome = OutcomeFailed
				result.Err = &BatchError{Script: script.Name, Batch: i + 1, Err: err}
				result.Duration = time.Since(start)
				return result
			}
		}

		a.logger.Debug("executing batch", "script", script.Name, "batch", i+1, "total", len(batches))

		if _, err := a.execBatch(session, batch); err != nil {
			result.Outcome = OutcomeFailed
			result.Err = &BatchError{Script: script.Name, Batch: i + 1, Err: err}
			result.Duration = time.Since(start)
			return result
		}

		result.BatchesApplied++
	}

	result.Outcome = OutcomeApplied
	result.Duration = time.Since(start)
	return result
}

func (a *applier) execBatch(session Session, batch string) (int64, error) {
	ctx := context.Background()
	if a.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.batchTimeout)
		defer cancel()
	}

	return session.ExecBatch(ctx, batch)
}
