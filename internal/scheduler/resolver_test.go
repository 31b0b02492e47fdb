package scheduler

import (
	"errors"
	"reflect"
	"testing"

	"github.com/TWRT/taskboard/internal/models"
)

func task(id string, prio models.Priority, deps ...string) *models.Task {
	return &models.Task{TaskID: id, Title: "Task " + id, Owner: "alice", Priority: prio, EstimatedHours: 1, Status: models.StatusPending, DependsOn: deps}
}

func taskSet(tasks ...*models.Task) map[string]*models.Task {
	m := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		m[t.TaskID] = t
	}
	return m
}

func position(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	return pos
}

func TestResolve_DependenciesComeFirst(t *testing.T) {
	// a -> b -> d, a -> c -> d, e independent
	tasks := taskSet(
		task("a", models.PriorityLow),
		task("b", models.PriorityHigh, "a"),
		task("c", models.PriorityMedium, "a"),
		task("d", models.PriorityHigh, "b", "c"),
		task("e", models.PriorityLow),
	)

	order, err := Resolve(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != len(tasks) {
		t.Fatalf("expected %d ids, got %v", len(tasks), order)
	}

	pos := position(order)
	for id, tk := range tasks {
		for _, dep := range tk.DependsOn {
			if pos[dep] >= pos[id] {
				t.Errorf("%s at %d must come after dependency %s at %d", id, pos[id], dep, pos[dep])
			}
		}
	}
}

func TestResolve_PriorityBreaksTies(t *testing.T) {
	tasks := taskSet(
		task("low", models.PriorityLow),
		task("high", models.PriorityHigh),
		task("medium", models.PriorityMedium),
		task("odd", models.Priority("Urgent")),
	)

	order, err := Resolve(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"high", "medium", "low", "odd"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestResolve_EqualPriorityUsesTaskID(t *testing.T) {
	tasks := taskSet(
		task("T3", models.PriorityMedium),
		task("T1", models.PriorityMedium),
		task("T2", models.PriorityMedium),
	)

	for i := 0; i < 5; i++ {
		order, err := Resolve(tasks)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []string{"T1", "T2", "T3"}; !reflect.DeepEqual(order, want) {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestResolve_ReleasedDependentCompetesByPriority(t *testing.T) {
	// After "root" is emitted, "child" (High) becomes ready alongside "other" (Medium).
	tasks := taskSet(
		task("root", models.PriorityHigh),
		task("other", models.PriorityMedium),
		task("child", models.PriorityHigh, "root"),
	)

	order, err := Resolve(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"root", "child", "other"}; !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestResolve_CycleNamesEveryUnresolvedTask(t *testing.T) {
	tasks := taskSet(
		task("A", models.PriorityHigh, "B"),
		task("B", models.PriorityHigh, "A"),
		task("C", models.PriorityHigh, "B"),
		task("D", models.PriorityLow),
	)

	_, err := Resolve(tasks)
	if !errors.Is(err, models.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	var cycleErr *models.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(cycleErr.Unresolved, want) {
		t.Errorf("expected unresolved %v, got %v", want, cycleErr.Unresolved)
	}
}

func TestResolve_SelfDependencyIsACycle(t *testing.T) {
	_, err := Resolve(taskSet(task("A", models.PriorityHigh, "A")))
	if !errors.Is(err, models.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestResolve_DanglingDependency(t *testing.T) {
	tasks := taskSet(
		task("A", models.PriorityHigh),
		task("B", models.PriorityHigh, "A", "ghost"),
	)

	order, err := Resolve(tasks)
	if order != nil {
		t.Errorf("expected no order, got %v", order)
	}
	var dangling *models.DanglingDependencyError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected dangling dependency error, got %v", err)
	}
	if dangling.TaskID != "B" || dangling.Missing != "ghost" {
		t.Errorf("unexpected error fields: %+v", dangling)
	}
}

func TestResolve_Empty(t *testing.T) {
	order, err := Resolve(map[string]*models.Task{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected empty order, got %v", order)
	}
}

func TestSelectOwner_KeepsResolverOrder(t *testing.T) {
	tasks := taskSet(
		task("a", models.PriorityHigh),
		task("b", models.PriorityHigh),
		task("c", models.PriorityHigh),
		task("d", models.PriorityHigh),
	)
	tasks["b"].Owner = "bob"
	order := []string{"d", "b", "c", "a"}

	got := SelectOwner(order, tasks, "alice")
	var ids []string
	for _, tk := range got {
		ids = append(ids, tk.TaskID)
	}
	if want := []string{"d", "c", "a"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}
