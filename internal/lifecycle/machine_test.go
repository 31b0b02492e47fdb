package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/TWRT/taskboard/internal/models"
)

type memSaver struct {
	saved []*models.Task
	err   error
}

func (s *memSaver) SaveOne(_ context.Context, t *models.Task) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, t.Clone())
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2025, 8, 11, 9, 30, 0, 0, time.UTC)}
}

func newTask(id, owner string) *models.Task {
	return &models.Task{TaskID: id, Title: "Task " + id, Owner: owner, Status: models.StatusPending, Priority: models.PriorityMedium, EstimatedHours: 2}
}

func board(tasks ...*models.Task) map[string]*models.Task {
	m := make(map[string]*models.Task)
	for _, t := range tasks {
		m[t.TaskID] = t
	}
	return m
}

func TestTransition_TableLegality(t *testing.T) {
	for _, from := range models.Statuses {
		for _, to := range models.Statuses {
			tk := newTask("T1", "alice")
			tk.Status = from
			if from == models.StatusInProgress {
				start := newClock().t.Add(-time.Hour)
				tk.InProgressStart = &start
			}
			tasks := board(tk)
			m := NewMachine(&memSaver{}, newClock().now)

			_, err := m.Transition(context.Background(), tasks, TransitionRequest{TaskID: "T1", Actor: "alice", To: to})
			if Allowed(from, to) {
				if err != nil {
					t.Errorf("%s -> %s: expected success, got %v", from, to, err)
				} else if tasks["T1"].Status != to {
					t.Errorf("%s -> %s: status is %s", from, to, tasks["T1"].Status)
				}
				continue
			}
			var illegal *models.IllegalTransitionError
			if !errors.As(err, &illegal) || illegal.Guard != models.GuardTable {
				t.Errorf("%s -> %s: expected table rejection, got %v", from, to, err)
				continue
			}
			if illegal.From != from || illegal.To != to {
				t.Errorf("expected error naming %s -> %s, got %s -> %s", from, to, illegal.From, illegal.To)
			}
			if tasks["T1"].Status != from {
				t.Errorf("%s -> %s: rejected transition changed status to %s", from, to, tasks["T1"].Status)
			}
		}
	}
}

func TestTransition_ExpectedTable(t *testing.T) {
	legal := make(map[[2]models.Status]bool)
	for _, pair := range [][2]models.Status{
		{models.StatusPending, models.StatusInProgress},
		{models.StatusPending, models.StatusCanceled},
		{models.StatusPaused, models.StatusInProgress},
		{models.StatusPaused, models.StatusCanceled},
		{models.StatusInProgress, models.StatusPaused},
		{models.StatusInProgress, models.StatusCompleted},
		{models.StatusInProgress, models.StatusCanceled},
		{models.StatusCompleted, models.StatusPending},
	} {
		legal[pair] = true
	}
	for _, from := range models.Statuses {
		for _, to := range models.Statuses {
			if got, want := Allowed(from, to), legal[[2]models.Status{from, to}]; got != want {
				t.Errorf("Allowed(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransition_BlockedUntilDependencyCompletes(t *testing.T) {
	t1 := newTask("T1", "alice")
	t2 := newTask("T2", "bob")
	t2.DependsOn = []string{"T1"}
	tasks := board(t1, t2)
	m := NewMachine(&memSaver{}, newClock().now)
	ctx := context.Background()

	_, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "T2", Actor: "bob", To: models.StatusInProgress})
	var illegal *models.IllegalTransitionError
	if !errors.As(err, &illegal) || illegal.Guard != models.GuardBlocked {
		t.Fatalf("expected blocked rejection, got %v", err)
	}
	if len(illegal.Reasons) != 1 || !strings.Contains(illegal.Reasons[0], "T1") {
		t.Errorf("expected reason citing T1, got %v", illegal.Reasons)
	}

	for _, to := range []models.Status{models.StatusInProgress, models.StatusCompleted} {
		if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "T1", Actor: "alice", To: to}); err != nil {
			t.Fatalf("T1 -> %s: %v", to, err)
		}
	}

	if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "T2", Actor: "bob", To: models.StatusInProgress}); err != nil {
		t.Fatalf("expected T2 to start after T1 completed, got %v", err)
	}
}

func TestTransition_SingleActivePerOwner(t *testing.T) {
	tasks := board(newTask("A", "alice"), newTask("B", "alice"), newTask("C", "bob"))
	m := NewMachine(&memSaver{}, newClock().now)
	ctx := context.Background()

	if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "A", Actor: "alice", To: models.StatusInProgress}); err != nil {
		t.Fatalf("start A: %v", err)
	}

	_, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "B", Actor: "alice", To: models.StatusInProgress})
	var illegal *models.IllegalTransitionError
	if !errors.As(err, &illegal) || illegal.Guard != models.GuardOwnerBusy {
		t.Fatalf("expected owner busy rejection, got %v", err)
	}

	// Other owners are unaffected.
	if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "C", Actor: "bob", To: models.StatusInProgress}); err != nil {
		t.Fatalf("start C: %v", err)
	}

	if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "A", Actor: "alice", To: models.StatusPaused}); err != nil {
		t.Fatalf("pause A: %v", err)
	}
	if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "B", Actor: "alice", To: models.StatusInProgress}); err != nil {
		t.Fatalf("expected B to start after A paused, got %v", err)
	}
}

func TestTransition_OnlyOwnerMayMove(t *testing.T) {
	tasks := board(newTask("A", "alice"))
	saver := &memSaver{}
	m := NewMachine(saver, newClock().now)

	_, err := m.Transition(context.Background(), tasks, TransitionRequest{TaskID: "A", Actor: "mallory", To: models.StatusInProgress})
	var illegal *models.IllegalTransitionError
	if !errors.As(err, &illegal) || illegal.Guard != models.GuardNotOwner {
		t.Fatalf("expected not-owner rejection, got %v", err)
	}
	if len(saver.saved) != 0 {
		t.Errorf("expected nothing saved, got %d", len(saver.saved))
	}
}

func TestTransition_TimeAccounting(t *testing.T) {
	c := newClock()
	tasks := board(newTask("A", "alice"))
	m := NewMachine(&memSaver{}, c.now)
	ctx := context.Background()

	move := func(to models.Status) *models.Task {
		t.Helper()
		got, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "A", Actor: "alice", To: to})
		if err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
		return got
	}

	started := move(models.StatusInProgress)
	if started.InProgressStart == nil || !started.InProgressStart.Equal(c.t) {
		t.Fatalf("expected session start at %v, got %v", c.t, started.InProgressStart)
	}

	c.advance(3 * time.Minute)
	if got := tasks["A"].SessionSeconds(c.t); got != 180 {
		t.Errorf("expected derived session of 180s, got %d", got)
	}
	if got := tasks["A"].SessionSeconds(c.t); got != 180 {
		t.Errorf("expected repeated read to be unchanged, got %d", got)
	}
	paused := move(models.StatusPaused)
	if paused.ActualSeconds != 180 {
		t.Errorf("expected 180 actual seconds, got %d", paused.ActualSeconds)
	}
	if paused.InProgressStart != nil {
		t.Error("expected session start cleared")
	}

	// Time spent paused is not counted.
	c.advance(time.Hour)
	move(models.StatusInProgress)
	c.advance(2 * time.Hour)
	done := move(models.StatusCompleted)
	if want := int64(180 + 7200); done.ActualSeconds != want {
		t.Errorf("expected %d actual seconds, got %d", want, done.ActualSeconds)
	}
	if done.ActualHours != 2.05 {
		t.Errorf("expected 2.05 actual hours, got %v", done.ActualHours)
	}

	reopened := move(models.StatusPending)
	if reopened.ActualSeconds != done.ActualSeconds {
		t.Errorf("reopen reset actual seconds: %d -> %d", done.ActualSeconds, reopened.ActualSeconds)
	}
}

func TestTransition_ClockSkewDoesNotSubtract(t *testing.T) {
	c := newClock()
	tk := newTask("A", "alice")
	tk.Status = models.StatusInProgress
	tk.ActualSeconds = 100
	future := c.t.Add(time.Hour)
	tk.InProgressStart = &future
	tasks := board(tk)

	got, err := NewMachine(&memSaver{}, c.now).Transition(context.Background(), tasks, TransitionRequest{TaskID: "A", Actor: "alice", To: models.StatusPaused})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ActualSeconds != 100 {
		t.Errorf("expected 100, got %d", got.ActualSeconds)
	}
}

func TestTransition_AuditTrail(t *testing.T) {
	c := newClock()
	tasks := board(newTask("A", "alice"))
	saver := &memSaver{}
	m := NewMachine(saver, c.now)
	ctx := context.Background()

	if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "A", Actor: "alice", To: models.StatusInProgress, Comment: "on it"}); err != nil {
		t.Fatal(err)
	}
	c.advance(time.Minute)
	if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "A", Actor: "alice", To: models.StatusPaused, Label: "Pause"}); err != nil {
		t.Fatal(err)
	}

	want := "2025-08-11T09:30:00 | Status -> In Progress: on it\n2025-08-11T09:31:00 | Pause: "
	if got := tasks["A"].CommentLog; got != want {
		t.Errorf("expected log %q, got %q", want, got)
	}
	if tasks["A"].LastComment != nil {
		t.Errorf("expected last comment cleared, got %q", *tasks["A"].LastComment)
	}
	if tasks["A"].LastUpdated == nil || !tasks["A"].LastUpdated.Equal(c.t) {
		t.Errorf("expected last updated %v, got %v", c.t, tasks["A"].LastUpdated)
	}
	if len(saver.saved) != 2 {
		t.Errorf("expected each transition saved, got %d saves", len(saver.saved))
	}

	entries := tasks["A"].Entries()
	if len(entries) != 2 || entries[0].Action != "Status -> In Progress" || entries[0].Comment != "on it" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestTransition_SaveFailureLeavesTaskUnchanged(t *testing.T) {
	tasks := board(newTask("A", "alice"))
	before := tasks["A"]
	m := NewMachine(&memSaver{err: errors.New("disk full")}, newClock().now)

	_, err := m.Transition(context.Background(), tasks, TransitionRequest{TaskID: "A", Actor: "alice", To: models.StatusInProgress})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected save error, got %v", err)
	}
	if tasks["A"] != before || before.Status != models.StatusPending || before.InProgressStart != nil || before.CommentLog != "" {
		t.Errorf("expected task untouched, got %+v", tasks["A"])
	}
}

func TestTransition_UnknownTaskAndStatus(t *testing.T) {
	tasks := board(newTask("A", "alice"))
	m := NewMachine(&memSaver{}, newClock().now)
	ctx := context.Background()

	if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "Z", Actor: "alice", To: models.StatusPaused}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := m.Transition(ctx, tasks, TransitionRequest{TaskID: "A", Actor: "alice", To: "Done"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestReassign(t *testing.T) {
	c := newClock()
	active := newTask("A", "alice")
	active.Status = models.StatusInProgress
	start := c.t.Add(-time.Minute)
	active.InProgressStart = &start
	bobs := newTask("B", "bob")
	bobs.Status = models.StatusInProgress
	bobs.InProgressStart = &start
	tasks := board(active, bobs, newTask("C", "alice"))
	owners := []string{"alice", "bob", "carol"}
	m := NewMachine(&memSaver{}, c.now)
	ctx := context.Background()

	guardOf := func(err error) models.Guard {
		var illegal *models.IllegalTransitionError
		if errors.As(err, &illegal) {
			return illegal.Guard
		}
		return ""
	}

	_, err := m.Reassign(ctx, tasks, ReassignRequest{TaskID: "C", Actor: "alice", NewOwner: "alice", Owners: owners})
	if guardOf(err) != models.GuardSameOwner {
		t.Errorf("expected same-owner rejection, got %v", err)
	}
	_, err = m.Reassign(ctx, tasks, ReassignRequest{TaskID: "C", Actor: "bob", NewOwner: "carol", Owners: owners})
	if guardOf(err) != models.GuardNotOwner {
		t.Errorf("expected not-owner rejection, got %v", err)
	}
	_, err = m.Reassign(ctx, tasks, ReassignRequest{TaskID: "C", Actor: "alice", NewOwner: "zed", Owners: owners})
	if guardOf(err) != models.GuardUnknownOwner {
		t.Errorf("expected unknown-owner rejection, got %v", err)
	}
	_, err = m.Reassign(ctx, tasks, ReassignRequest{TaskID: "A", Actor: "alice", NewOwner: "bob", Owners: owners})
	if guardOf(err) != models.GuardOwnerBusy {
		t.Errorf("expected owner-busy rejection, got %v", err)
	}

	got, err := m.Reassign(ctx, tasks, ReassignRequest{TaskID: "A", Actor: "alice", NewOwner: "carol", Comment: "handover", Owners: owners})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Owner != "carol" || got.Status != models.StatusInProgress || got.InProgressStart == nil || !got.InProgressStart.Equal(start) {
		t.Errorf("expected owner change only, got %+v", got)
	}
	if !strings.HasSuffix(got.CommentLog, "| Reassign to carol: handover") {
		t.Errorf("unexpected log %q", got.CommentLog)
	}
}

func TestAction_Resolve(t *testing.T) {
	to, label, err := ActionPause.Resolve()
	if err != nil || to != models.StatusPaused || label != "Pause" {
		t.Errorf("unexpected pause mapping: %s %q %v", to, label, err)
	}
	if _, _, err := Action("explode").Resolve(); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
