package sqldeploy

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoScripts         = errors.New("no scripts found")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidScriptName = errors.New("invalid script name")
	ErrScriptEncoding    = errors.New("script is not valid UTF-8")
	ErrUnknownObjectKind = errors.New("unknown object kind")
	ErrConnection        = errors.New("database connection error")
	ErrTransactionFailed = errors.New("transaction failed")
)

// BatchError reports the failure of a single batch. Batch is 1-based so it
// matches the positions operators see in their script files.
type BatchError struct {
	Script string
	Batch  int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("script %s: batch %d: %v", e.Script, e.Batch, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the batch failed because its execution deadline
// expired.
func (e *BatchError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
