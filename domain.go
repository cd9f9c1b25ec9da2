package sqldeploy

import "time"

type ObjectKind string

const (
	KindProcedure ObjectKind = "procedure"
	KindView      ObjectKind = "view"
	KindFunction  ObjectKind = "function"
	KindTrigger   ObjectKind = "trigger"
	KindTable     ObjectKind = "table"
)

// deployOrder lists object kinds in dependency-safe creation order.
// Drops run in reverse.
var deployOrder = []ObjectKind{KindTable, KindFunction, KindView, KindProcedure, KindTrigger}

type ObjectRef struct {
	Schema string
	Name   string
	Kind   ObjectKind
}

func (r ObjectRef) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

func (r ObjectRef) IsZero() bool {
	return r.Name == ""
}

type Script struct {
	Name     string
	SQL      string
	Object   ObjectRef
	Checksum string
}

type Outcome int

const (
	OutcomeNotAttempted Outcome = iota
	OutcomeApplied
	OutcomeFailed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "not attempted"
	}
}

type TxnMode int

const (
	TxnPerScript TxnMode = iota
	TxnAllOrNothing
)

func (m TxnMode) String() string {
	if m == TxnAllOrNothing {
		return "all-or-nothing"
	}
	return "per-script"
}

type ApplyResult struct {
	Script         string
	Object         ObjectRef
	Outcome        Outcome
	BatchesApplied int
	Err            error
	Duration       time.Duration
	Checksum       string
}

type ObjectStatus struct {
	Script       string
	Object       ObjectRef
	Exists       bool
	CatalogKind  ObjectKind
	Checksum     string
	LastChecksum string
	LastApplied  *time.Time
}

type DeployRecord struct {
	RunID          string
	Script         string
	Object         string
	Outcome        Outcome
	BatchesApplied int
	Checksum       string
	Error          string
	AppliedAt      time.Time
}
