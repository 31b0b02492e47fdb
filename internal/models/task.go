package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusPaused     Status = "Paused"
	StatusCompleted  Status = "Completed"
	StatusCanceled   Status = "Canceled"
)

// Statuses lists every status in board column order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusPaused, StatusCompleted, StatusCanceled}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPaused, StatusCompleted, StatusCanceled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status counts as finished work.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// ParseStatus accepts the persisted spelling. A blank value means Pending.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return StatusPending, nil
	}
	s := Status(v)
	if !s.IsValid() {
		return "", &ValidationError{Field: "Status", Value: v, Msg: "unknown status"}
	}
	return s, nil
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// UnknownPriorityRank sorts after every known priority.
const UnknownPriorityRank = 99

// Rank orders priorities for tie-breaking. Lower sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return UnknownPriorityRank
	}
}

func (p Priority) IsValid() bool {
	return p.Rank() != UnknownPriorityRank
}

func ParsePriority(v string) (Priority, error) {
	p := Priority(strings.TrimSpace(v))
	if !p.IsValid() {
		return "", &ValidationError{Field: "Priority", Value: v, Msg: "expected High, Medium or Low"}
	}
	return p, nil
}

// DateLayout is the persisted form of StartDate and DueDate.
const DateLayout = "2006-01-02"

// TimestampLayout is the persisted form of audit and session timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// ParseTimestamp reads the timestamp forms written by this module and by older
// exports. Zone-less values are read in local time.
func ParseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseDate accepts a plain date or a timestamp and keeps the calendar day.
func ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.ParseInLocation(DateLayout, v, time.Local); err == nil {
		return t, nil
	}
	t, err := ParseTimestamp(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", v)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local), nil
}

// DependsOnSeparator joins DependsOn in persisted records.
const DependsOnSeparator = "|"

// SplitDependsOn parses a persisted dependency list, dropping blanks and
// repeated IDs while keeping first-seen order.
func SplitDependsOn(v string) []string {
	var deps []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(v, DependsOnSeparator) {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deps = append(deps, id)
	}
	return deps
}

func JoinDependsOn(deps []string) string {
	return strings.Join(deps, DependsOnSeparator)
}

type Task struct {
	TaskID          string     `json:"task_id" yaml:"task_id"`
	Project         string     `json:"project" yaml:"project"`
	Milestone       string     `json:"milestone" yaml:"milestone"`
	Title           string     `json:"title" yaml:"title"`
	Owner           string     `json:"owner" yaml:"owner"`
	DependsOn       []string   `json:"depends_on" yaml:"depends_on"`
	EstimatedHours  float64    `json:"estimated_hours" yaml:"estimated_hours"`
	Priority        Priority   `json:"priority" yaml:"priority"`
	StartDate       time.Time  `json:"start_date" yaml:"start_date"`
	DueDate         time.Time  `json:"due_date" yaml:"due_date"`
	Status          Status     `json:"status" yaml:"status"`
	ActualHours     float64    `json:"actual_hours" yaml:"actual_hours"`
	ActualSeconds   int64      `json:"actual_seconds" yaml:"actual_seconds"`
	InProgressStart *time.Time `json:"in_progress_start,omitempty" yaml:"in_progress_start,omitempty"`
	LastComment     *string    `json:"last_comment,omitempty" yaml:"last_comment,omitempty"`
	CommentLog      string     `json:"comment_log,omitempty" yaml:"comment_log,omitempty"`
	LastUpdated     *time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`

	// Filled by the allocator on each scheduling pass; never persisted.
	ScheduledStart *time.Time `json:"scheduled_start,omitempty" yaml:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty" yaml:"scheduled_end,omitempty"`
}

// Clone returns a deep copy so callers can stage a mutation before committing it.
func (t *Task) Clone() *Task {
	c := *t
	if t.DependsOn != nil {
		c.DependsOn = append([]string(nil), t.DependsOn...)
	}
	c.InProgressStart = cloneTime(t.InProgressStart)
	c.LastUpdated = cloneTime(t.LastUpdated)
	c.ScheduledStart = cloneTime(t.ScheduledStart)
	c.ScheduledEnd = cloneTime(t.ScheduledEnd)
	if t.LastComment != nil {
		s := *t.LastComment
		c.LastComment = &s
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// RoundHours converts accumulated seconds to hours with two decimals.
func RoundHours(seconds int64) float64 {
	return math.Round(float64(seconds)/3600.0*100) / 100
}

// SessionSeconds is the elapsed time of the current active session at now.
// It is derived on every read and never stored.
func (t *Task) SessionSeconds(now time.Time) int64 {
	if t.Status != StatusInProgress || t.InProgressStart == nil {
		return 0
	}
	elapsed := int64(now.Sub(*t.InProgressStart) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// MaxEstimatedHours keeps an estimate representable as a time.Duration.
const MaxEstimatedHours = 1_000_000

// Validate checks field values that every store requires. Priority is not
// checked here: an unrecognized priority only sorts last.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.TaskID) == "" {
		return &ValidationError{Field: "TaskID", Msg: "is required"}
	}
	if !(t.EstimatedHours > 0) || math.IsInf(t.EstimatedHours, 0) {
		return &ValidationError{TaskID: t.TaskID, Field: "EstimatedHours", Value: fmt.Sprint(t.EstimatedHours), Msg: "must be a positive number"}
	}
	if t.EstimatedHours > MaxEstimatedHours {
		return &ValidationError{TaskID: t.TaskID, Field: "EstimatedHours", Value: fmt.Sprint(t.EstimatedHours), Msg: fmt.Sprintf("must not exceed %d", MaxEstimatedHours)}
	}
	if !t.Status.IsValid() {
		return &ValidationError{TaskID: t.TaskID, Field: "Status", Value: string(t.Status), Msg: "unknown status"}
	}
	if t.ActualSeconds < 0 {
		return &ValidationError{TaskID: t.TaskID, Field: "ActualSeconds", Value: fmt.Sprint(t.ActualSeconds), Msg: "must not be negative"}
	}
	return nil
}
