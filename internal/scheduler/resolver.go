package scheduler

import (
	"container/heap"
	"sort"

	"github.com/TWRT/taskboard/internal/models"
)

// Resolve returns every TaskID in an order where each task follows all of its
// dependencies. Among tasks that are ready at the same step the lowest
// priority rank goes first, then the lowest TaskID.
//
// A reference to a task outside the set fails before any ordering is built.
// A cycle fails with every task that could not be ordered.
func Resolve(tasks map[string]*models.Task) ([]string, error) {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dependents := make(map[string][]string, len(tasks))
	inDegree := make(map[string]int, len(tasks))
	for _, id := range ids {
		for _, dep := range tasks[id].DependsOn {
			if _, ok := tasks[dep]; !ok {
				return nil, &models.DanglingDependencyError{TaskID: id, Missing: dep}
			}
			dependents[dep] = append(dependents[dep], id)
			inDegree[id]++
		}
	}

	ready := &frontier{tasks: tasks}
	for _, id := range ids {
		if inDegree[id] == 0 {
			ready.ids = append(ready.ids, id)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(tasks))
	for ready.Len() > 0 {
		current := heap.Pop(ready).(string)
		order = append(order, current)
		for _, next := range dependents[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(order) != len(tasks) {
		emitted := make(map[string]struct{}, len(order))
		for _, id := range order {
			emitted[id] = struct{}{}
		}
		var unresolved []string
		for _, id := range ids {
			if _, ok := emitted[id]; !ok {
				unresolved = append(unresolved, id)
			}
		}
		return nil, &models.CycleError{Unresolved: unresolved}
	}
	return order, nil
}

// SelectOwner keeps the tasks owned by owner in resolver order. It filters
// and never re-sorts.
func SelectOwner(order []string, tasks map[string]*models.Task, owner string) []*models.Task {
	var out []*models.Task
	for _, id := range order {
		if t, ok := tasks[id]; ok && t.Owner == owner {
			out = append(out, t)
		}
	}
	return out
}

// frontier is a min-heap of ready TaskIDs keyed by (priority rank, TaskID).
type frontier struct {
	tasks map[string]*models.Task
	ids   []string
}

func (f *frontier) Len() int { return len(f.ids) }

func (f *frontier) Less(i, j int) bool {
	a, b := f.ids[i], f.ids[j]
	ra, rb := f.tasks[a].Priority.Rank(), f.tasks[b].Priority.Rank()
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func (f *frontier) Swap(i, j int) { f.ids[i], f.ids[j] = f.ids[j], f.ids[i] }

func (f *frontier) Push(x any) { f.ids = append(f.ids, x.(string)) }

func (f *frontier) Pop() any {
	old := f.ids
	n := len(old)
	x := old[n-1]
	f.ids = old[:n-1]
	return x
}
