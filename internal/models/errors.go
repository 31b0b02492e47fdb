package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSchema             = errors.New("schema error")
	ErrDanglingDependency = errors.New("dangling dependency")
	ErrCycle              = errors.New("dependency cycle")
	ErrIllegalTransition  = errors.New("illegal transition")
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("task not found")
)

// SchemaError reports required fields missing from a loaded record set.
type SchemaError struct {
	Source  string
	Missing []string
	Row     int // 0 when a column is missing entirely
}

func (e *SchemaError) Error() string {
	where := e.Source
	if e.Row > 0 {
		where = fmt.Sprintf("%s row %d", e.Source, e.Row)
	}
	return fmt.Sprintf("%s: %s: missing required field(s): %s", ErrSchema, where, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

type DanglingDependencyError struct {
	TaskID  string
	Missing string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("%s: task %q depends on undefined task %q", ErrDanglingDependency, e.TaskID, e.Missing)
}

func (e *DanglingDependencyError) Unwrap() error { return ErrDanglingDependency }

// CycleError carries every task the resolver could not order.
type CycleError struct {
	Unresolved []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: unresolved tasks: %s", ErrCycle, strings.Join(e.Unresolved, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Guard names the check that refused a transition.
type Guard string

const (
	GuardTable        Guard = "transition_table"
	GuardBlocked      Guard = "blocked"
	GuardOwnerBusy    Guard = "owner_busy"
	GuardNotOwner     Guard = "not_owner"
	GuardSameOwner    Guard = "same_owner"
	GuardUnknownOwner Guard = "unknown_owner"
)

type IllegalTransitionError struct {
	TaskID  string
	From    Status
	To      Status
	Guard   Guard
	Reasons []string
}

func (e *IllegalTransitionError) Error() string {
	var msg string
	switch e.Guard {
	case GuardBlocked:
		msg = fmt.Sprintf("task %q is blocked by incomplete dependencies", e.TaskID)
	case GuardOwnerBusy:
		msg = fmt.Sprintf("owner already has another task in progress; pause, complete or cancel it before starting %q", e.TaskID)
	case GuardNotOwner:
		msg = fmt.Sprintf("task %q can only be moved by its owner", e.TaskID)
	case GuardSameOwner:
		msg = fmt.Sprintf("task %q is already assigned to that owner", e.TaskID)
	case GuardUnknownOwner:
		msg = fmt.Sprintf("task %q cannot be reassigned to an unknown owner", e.TaskID)
	default:
		msg = fmt.Sprintf("task %q cannot move from %s to %s", e.TaskID, e.From, e.To)
	}
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	return fmt.Sprintf("%s: %s", ErrIllegalTransition, msg)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// ValidationError reports a malformed field value supplied to a load or mutation.
type ValidationError struct {
	TaskID string
	Field  string
	Value  string
	Msg    string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrValidation.Error())
	b.WriteString(": ")
	if e.TaskID != "" {
		fmt.Fprintf(&b, "task %q: ", e.TaskID)
	}
	b.WriteString(e.Field)
	if e.Value != "" {
		fmt.Fprintf(&b, " %q", e.Value)
	}
	if e.Msg != "" {
		b.WriteString(" ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNotFound, e.TaskID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
