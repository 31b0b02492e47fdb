package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/TWRT/taskboard/internal/models"
	"github.com/TWRT/taskboard/internal/progress"
)

// Saver persists one task record. It is the only part of the store the
// state machine needs.
type Saver interface {
	SaveOne(ctx context.Context, task *models.Task) error
}

type Machine struct {
	saver Saver
	now   func() time.Time
}

func NewMachine(saver Saver, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{saver: saver, now: now}
}

type TransitionRequest struct {
	TaskID string
	Actor  string
	To     models.Status
	// Label is the audit action label; DefaultLabel(To) when empty.
	Label   string
	Comment string
}

// Transition validates and applies one status change to tasks[req.TaskID].
//
// Guards run in order: the actor must own the task, the table must allow the
// move, and entering In Progress requires an unblocked task and no other In
// Progress task for the same owner. A refused transition returns an
// *models.IllegalTransitionError and leaves tasks untouched.
//
// The change is staged on a copy, saved, and only then written into tasks,
// so a failed save leaves the in-memory view as it was.
func (m *Machine) Transition(ctx context.Context, tasks map[string]*models.Task, req TransitionRequest) (*models.Task, error) {
	current, ok := tasks[req.TaskID]
	if !ok {
		return nil, &models.NotFoundError{TaskID: req.TaskID}
	}
	if !req.To.IsValid() {
		return nil, &models.ValidationError{TaskID: req.TaskID, Field: "Status", Value: string(req.To), Msg: "unknown status"}
	}
	from := current.Status

	if req.Actor != current.Owner {
		return nil, &models.IllegalTransitionError{TaskID: req.TaskID, From: from, To: req.To, Guard: models.GuardNotOwner}
	}
	if !Allowed(from, req.To) {
		return nil, &models.IllegalTransitionError{TaskID: req.TaskID, From: from, To: req.To, Guard: models.GuardTable}
	}
	if req.To == models.StatusInProgress {
		if reasons := progress.BlockReasons(current, tasks); len(reasons) > 0 {
			return nil, &models.IllegalTransitionError{TaskID: req.TaskID, From: from, To: req.To, Guard: models.GuardBlocked, Reasons: reasons}
		}
		if active := progress.InProgressFor(tasks, current.Owner); active != nil && active.TaskID != current.TaskID {
			return nil, &models.IllegalTransitionError{
				TaskID:  req.TaskID,
				From:    from,
				To:      req.To,
				Guard:   models.GuardOwnerBusy,
				Reasons: []string{fmt.Sprintf("%s (%s) is in progress", active.TaskID, active.Title)},
			}
		}
	}

	now := m.now()
	next := current.Clone()

	if from == models.StatusInProgress && req.To != models.StatusInProgress {
		if next.InProgressStart != nil {
			elapsed := int64(now.Sub(*next.InProgressStart) / time.Second)
			next.ActualSeconds += max(0, elapsed)
		}
		next.InProgressStart = nil
		next.ActualHours = models.RoundHours(next.ActualSeconds)
	}
	if req.To == models.StatusInProgress && from != models.StatusInProgress && next.InProgressStart == nil {
		started := now
		next.InProgressStart = &started
	}

	next.Status = req.To
	label := req.Label
	if label == "" {
		label = DefaultLabel(req.To)
	}
	next.AppendComment(now, label, req.Comment)

	if err := m.saver.SaveOne(ctx, next); err != nil {
		return nil, fmt.Errorf("save task %s: %w", req.TaskID, err)
	}
	tasks[req.TaskID] = next
	return next, nil
}

type ReassignRequest struct {
	TaskID   string
	Actor    string
	NewOwner string
	Comment  string
	// Owners is the set of known owners. When non-empty the new owner must be in it.
	Owners []string
}

// Reassign moves a task to another owner. It never touches status or timing,
// but it refuses to hand an In Progress task to someone who already has one.
func (m *Machine) Reassign(ctx context.Context, tasks map[string]*models.Task, req ReassignRequest) (*models.Task, error) {
	current, ok := tasks[req.TaskID]
	if !ok {
		return nil, &models.NotFoundError{TaskID: req.TaskID}
	}
	if req.NewOwner == "" {
		return nil, &models.ValidationError{TaskID: req.TaskID, Field: "Owner", Msg: "is required"}
	}
	deny := func(g models.Guard, reasons ...string) error {
		return &models.IllegalTransitionError{TaskID: req.TaskID, From: current.Status, To: current.Status, Guard: g, Reasons: reasons}
	}
	if req.Actor != current.Owner {
		return nil, deny(models.GuardNotOwner)
	}
	if req.NewOwner == current.Owner {
		return nil, deny(models.GuardSameOwner)
	}
	if len(req.Owners) > 0 && !slices.Contains(req.Owners, req.NewOwner) {
		return nil, deny(models.GuardUnknownOwner, req.NewOwner)
	}
	if current.Status == models.StatusInProgress {
		if active := progress.InProgressFor(tasks, req.NewOwner); active != nil {
			return nil, deny(models.GuardOwnerBusy, fmt.Sprintf("%s already has %s in progress", req.NewOwner, active.TaskID))
		}
	}

	next := current.Clone()
	next.Owner = req.NewOwner
	next.AppendComment(m.now(), "Reassign to "+req.NewOwner, req.Comment)

	if err := m.saver.SaveOne(ctx, next); err != nil {
		return nil, fmt.Errorf("save task %s: %w", req.TaskID, err)
	}
	tasks[req.TaskID] = next
	return next, nil
}
