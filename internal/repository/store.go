package repository

import (
	"context"
	"sort"

	"github.com/TWRT/taskboard/internal/models"
)

// Revision is an opaque, comparable change token. A store returns a
// different value after any write, from any client.
type Revision int64

// Snapshot is the full record set returned by a load.
type Snapshot struct {
	Tasks  map[string]*models.Task
	Owners []string
}

// NewSnapshot indexes tasks and collects their distinct owners in sorted order.
func NewSnapshot(tasks []*models.Task) *Snapshot {
	s := &Snapshot{Tasks: make(map[string]*models.Task, len(tasks))}
	seen := make(map[string]struct{})
	for _, t := range tasks {
		s.Tasks[t.TaskID] = t
		if _, ok := seen[t.Owner]; !ok {
			seen[t.Owner] = struct{}{}
			s.Owners = append(s.Owners, t.Owner)
		}
	}
	sort.Strings(s.Owners)
	return s
}

// Store is the persistence contract the board depends on. SaveAll and SaveOne
// overwrite their target records in full.
type Store interface {
	LoadAll(ctx context.Context) (*Snapshot, error)
	SaveAll(ctx context.Context, tasks map[string]*models.Task) error
	SaveOne(ctx context.Context, task *models.Task) error
	LastModified(ctx context.Context) (Revision, error)
}
