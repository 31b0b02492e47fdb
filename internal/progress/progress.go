package progress

import (
	"fmt"
	"math"
	"sort"

	"github.com/TWRT/taskboard/internal/models"
)

// Scope filters tasks by project and, optionally, milestone. Empty fields
// match everything.
type Scope struct {
	Project   string `json:"project,omitempty"`
	Milestone string `json:"milestone,omitempty"`
}

func (s Scope) Contains(t *models.Task) bool {
	if s.Project != "" && t.Project != s.Project {
		return false
	}
	if s.Milestone != "" && t.Milestone != s.Milestone {
		return false
	}
	return true
}

// Percent is the share of Completed tasks in scope across all owners, rounded
// half to even (12.5 -> 12). An empty scope is 0.
func Percent(tasks map[string]*models.Task, scope Scope) int {
	total, completed := 0, 0
	for _, t := range tasks {
		if !scope.Contains(t) {
			continue
		}
		total++
		if t.Status == models.StatusCompleted {
			completed++
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.RoundToEven(100 * float64(completed) / float64(total)))
}

// BlockReasons explains, one line per dependency, why a task cannot start.
// An empty result means the task is not blocked.
func BlockReasons(t *models.Task, tasks map[string]*models.Task) []string {
	var reasons []string
	for _, depID := range t.DependsOn {
		dep, ok := tasks[depID]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("Depends on missing task %s", depID))
			continue
		}
		if dep.Status != models.StatusCompleted {
			reasons = append(reasons, fmt.Sprintf("Waiting on %s (%s) owned by %s", depID, dep.Title, dep.Owner))
		}
	}
	return reasons
}

func IsBlocked(t *models.Task, tasks map[string]*models.Task) bool {
	return len(BlockReasons(t, tasks)) > 0
}

// ActiveCounts returns the number of non-terminal tasks per owner. Every
// owner in owners appears, even with zero.
func ActiveCounts(tasks map[string]*models.Task, owners []string) map[string]int {
	counts := make(map[string]int, len(owners))
	for _, o := range owners {
		counts[o] = 0
	}
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			counts[t.Owner]++
		}
	}
	return counts
}

// InProgressFor returns the owner's active task, or nil.
func InProgressFor(tasks map[string]*models.Task, owner string) *models.Task {
	var found []*models.Task
	for _, t := range tasks {
		if t.Owner == owner && t.Status == models.StatusInProgress {
			found = append(found, t)
		}
	}
	if len(found) == 0 {
		return nil
	}
	// More than one can only appear through direct store edits; pick deterministically.
	sort.Slice(found, func(i, j int) bool { return found[i].TaskID < found[j].TaskID })
	return found[0]
}
