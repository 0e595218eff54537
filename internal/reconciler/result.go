package reconciler

import (
	"fmt"
	"strings"
	"time"
)

// Phase identifies which half of a record's update an action belongs to.
type Phase string

const (
	// PhaseRemove is the removal of a stale live record.
	PhaseRemove Phase = "remove"
	// PhaseAdd is the creation of a missing record.
	PhaseAdd Phase = "add"
)

// ActionStatus represents the outcome of an action.
type ActionStatus string

const (
	// StatusSuccess indicates the provider applied the change.
	StatusSuccess ActionStatus = "success"
	// StatusSkipped indicates nothing needed to change.
	StatusSkipped ActionStatus = "skipped"
	// StatusFailed indicates the change was needed but not applied.
	StatusFailed ActionStatus = "failed"
)

// Action is the decision taken for one phase of one declared record.
type Action struct {
	Phase  Phase
	Status ActionStatus

	// Zone is the zone the record was declared under.
	Zone string

	// Name is the fully-qualified record name.
	Name string

	// Type is the record type token ("A", "TXT", ...).
	Type string

	// Value is the value removed or added. For skipped actions it is the
	// live value when one exists.
	Value string

	// Reason explains a skip.
	Reason string

	// Error contains the error message if Status is StatusFailed.
	Error string

	// DryRun indicates this action was not sent to the provider.
	DryRun bool
}

// String returns a human-readable representation of the action.
func (a Action) String() string {
	status := string(a.Status)
	if a.DryRun && a.Status == StatusSuccess {
		status = "dry-run"
	}

	detail := ""
	switch {
	case a.Error != "":
		detail = ": " + a.Error
	case a.Reason != "":
		detail = " (" + a.Reason + ")"
	}

	return fmt.Sprintf("[%s] %s %s %s %q%s", status, a.Phase, a.Name, a.Type, a.Value, detail)
}

// Mutated reports whether the action changed (or in dry-run would have
// changed) provider state.
func (a Action) Mutated() bool {
	return a.Status == StatusSuccess
}

// Result holds the complete result of a reconciliation cycle.
type Result struct {
	StartTime time.Time
	EndTime   time.Time

	// Address is the public address resolved for this cycle, if any
	// record needed it.
	Address string

	// RecordsDeclared is the number of records in configuration.
	RecordsDeclared int

	// RecordsLive is the number of records the provider reported.
	RecordsLive int

	// Actions holds two actions per declared record (remove then add)
	// in declaration order, or one when the removal failed.
	Actions []Action

	// DryRun indicates no changes were sent to the provider.
	DryRun bool
}

// NewResult creates a new Result with the start time set to now.
func NewResult(dryRun bool) *Result {
	return &Result{
		StartTime: time.Now(),
		Actions:   make([]Action, 0),
		DryRun:    dryRun,
	}
}

// Complete marks the result as complete with the end time set to now.
func (r *Result) Complete() {
	r.EndTime = time.Now()
}

// Duration returns the total reconciliation duration.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// AddAction adds an action to the result.
func (r *Result) AddAction(action Action) {
	action.DryRun = r.DryRun
	r.Actions = append(r.Actions, action)
}

// Added returns all successful add actions.
func (r *Result) Added() []Action {
	return r.filterActions(PhaseAdd, StatusSuccess)
}

// Removed returns all successful remove actions.
func (r *Result) Removed() []Action {
	return r.filterActions(PhaseRemove, StatusSuccess)
}

// Failed returns all failed actions.
func (r *Result) Failed() []Action {
	var failed []Action
	for _, a := range r.Actions {
		if a.Status == StatusFailed {
			failed = append(failed, a)
		}
	}
	return failed
}

// Skipped returns all skipped actions.
func (r *Result) Skipped() []Action {
	var skipped []Action
	for _, a := range r.Actions {
		if a.Status == StatusSkipped {
			skipped = append(skipped, a)
		}
	}
	return skipped
}

func (r *Result) filterActions(phase Phase, status ActionStatus) []Action {
	var filtered []Action
	for _, a := range r.Actions {
		if a.Phase == phase && a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// AddedCount returns the number of records added (or would be in dry-run).
func (r *Result) AddedCount() int {
	return len(r.Added())
}

// RemovedCount returns the number of records removed (or would be in dry-run).
func (r *Result) RemovedCount() int {
	return len(r.Removed())
}

// FailedCount returns the number of failed actions.
func (r *Result) FailedCount() int {
	return len(r.Failed())
}

// HasErrors returns true if any actions failed.
func (r *Result) HasErrors() bool {
	return r.FailedCount() > 0
}

// Summary returns a human-readable summary of the reconciliation.
func (r *Result) Summary() string {
	var sb strings.Builder

	mode := "applied"
	if r.DryRun {
		mode = "dry-run"
	}

	fmt.Fprintf(&sb, "Reconciliation complete (%s) in %s\n", mode, r.Duration().Round(time.Millisecond))
	if r.Address != "" {
		fmt.Fprintf(&sb, "  Public address: %s\n", r.Address)
	}
	fmt.Fprintf(&sb, "  Records declared: %d\n", r.RecordsDeclared)
	fmt.Fprintf(&sb, "  Records live: %d\n", r.RecordsLive)
	fmt.Fprintf(&sb, "  Records removed: %d\n", r.RemovedCount())
	fmt.Fprintf(&sb, "  Records added: %d\n", r.AddedCount())
	fmt.Fprintf(&sb, "  Skipped: %d\n", len(r.Skipped()))

	if r.HasErrors() {
		fmt.Fprintf(&sb, "  Failed: %d\n", r.FailedCount())
		for _, a := range r.Failed() {
			fmt.Fprintf(&sb, "    - %s\n", a.String())
		}
	}

	return sb.String()
}
