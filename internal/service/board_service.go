package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/TWRT/taskboard/internal/lifecycle"
	"github.com/TWRT/taskboard/internal/models"
	"github.com/TWRT/taskboard/internal/progress"
	"github.com/TWRT/taskboard/internal/repository"
	"github.com/TWRT/taskboard/internal/scheduler"
)

// BoardService owns the in-memory task map. Every read and mutation goes
// through it under one lock; mutations reach the map only via the lifecycle
// machine.
type BoardService struct {
	mu      sync.Mutex
	store   repository.Store
	machine *lifecycle.Machine
	hours   scheduler.WorkingHours
	now     func() time.Time

	tasks    map[string]*models.Task
	owners   []string
	order    []string
	loadedAt time.Time
	loadErr  error
}

func NewBoardService(store repository.Store, hours scheduler.WorkingHours, now func() time.Time) *BoardService {
	if now == nil {
		now = time.Now
	}
	return &BoardService{
		store:   store,
		machine: lifecycle.NewMachine(store, now),
		hours:   hours,
		now:     now,
		tasks:   map[string]*models.Task{},
	}
}

// Load reads the full record set and resolves it. Nothing is replaced unless
// both steps succeed.
func (s *BoardService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Reload is the apply step for a detected store change. A failed reload keeps
// the previous view and is reported by State.
func (s *BoardService) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		log.Printf("[board] reload failed, keeping previous view: %v", err)
		s.loadErr = err
		return err
	}
	return nil
}

func (s *BoardService) load(ctx context.Context) error {
	snap, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	order, err := scheduler.Resolve(snap.Tasks)
	if err != nil {
		return fmt.Errorf("resolve tasks: %w", err)
	}
	s.tasks = snap.Tasks
	s.owners = snap.Owners
	s.order = order
	s.loadedAt = s.now()
	s.loadErr = nil
	return nil
}

type LoadState struct {
	Tasks     int       `json:"tasks"`
	Owners    int       `json:"owners"`
	LoadedAt  time.Time `json:"loaded_at"`
	LastError string    `json:"last_error,omitempty"`
}

func (s *BoardService) State() LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := LoadState{Tasks: len(s.tasks), Owners: len(s.owners), LoadedAt: s.loadedAt}
	if s.loadErr != nil {
		st.LastError = s.loadErr.Error()
	}
	return st
}

func (s *BoardService) Owners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.owners...)
}

func (s *BoardService) Projects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return distinct(s.tasks, func(t *models.Task) (string, bool) { return t.Project, true })
}

func (s *BoardService) Milestones(project string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return distinct(s.tasks, func(t *models.Task) (string, bool) { return t.Milestone, t.Project == project })
}

func distinct(tasks map[string]*models.Task, pick func(*models.Task) (string, bool)) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, t := range tasks {
		v, ok := pick(t)
		if !ok {
			continue
		}
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// BoardFilter narrows an owner's board. Empty fields match everything.
type BoardFilter struct {
	Project   string
	Milestone string
	Priority  models.Priority
}

func (f BoardFilter) match(t *models.Task) bool {
	if !(progress.Scope{Project: f.Project, Milestone: f.Milestone}).Contains(t) {
		return false
	}
	return f.Priority == "" || t.Priority == f.Priority
}

type Card struct {
	Task            *models.Task `json:"task"`
	Blocked         bool         `json:"blocked"`
	BlockReasons    []string     `json:"block_reasons,omitempty"`
	SessionSeconds  int64        `json:"session_seconds"`
	ProjectProgress int          `json:"project_progress"`
}

type Column struct {
	Status models.Status `json:"status"`
	Cards  []Card        `json:"cards"`
}

type Board struct {
	Owner   string   `json:"owner"`
	Columns []Column `json:"columns"`
}

// Board groups the owner's tasks by status, each column in resolver order.
func (s *BoardService) Board(owner string, filter BoardFilter) (*Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.knownOwner(owner); err != nil {
		return nil, err
	}

	now := s.now()
	byStatus := make(map[models.Status][]Card)
	for _, t := range scheduler.SelectOwner(s.order, s.tasks, owner) {
		if !filter.match(t) {
			continue
		}
		reasons := progress.BlockReasons(t, s.tasks)
		byStatus[t.Status] = append(byStatus[t.Status], Card{
			Task:            t.Clone(),
			Blocked:         len(reasons) > 0,
			BlockReasons:    reasons,
			SessionSeconds:  t.SessionSeconds(now),
			ProjectProgress: progress.Percent(s.tasks, progress.Scope{Project: t.Project}),
		})
	}

	b := &Board{Owner: owner}
	for _, st := range models.Statuses {
		cards := byStatus[st]
		if cards == nil {
			cards = []Card{}
		}
		b.Columns = append(b.Columns, Column{Status: st, Cards: cards})
	}
	return b, nil
}

// Schedule allocates the owner's tasks, in resolver order, from the given
// instant. The returned tasks are copies with ScheduledStart and ScheduledEnd
// set.
func (s *BoardService) Schedule(owner string, from time.Time) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.knownOwner(owner); err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = s.now()
	}

	selected := scheduler.SelectOwner(s.order, s.tasks, owner)
	slots := s.hours.Allocate(selected, from)
	out := make([]*models.Task, len(selected))
	for i, t := range selected {
		c := t.Clone()
		start, end := slots[i].Start, slots[i].End
		c.ScheduledStart = &start
		c.ScheduledEnd = &end
		out[i] = c
	}
	return out, nil
}

func (s *BoardService) Task(id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, &models.NotFoundError{TaskID: id}
	}
	return t.Clone(), nil
}

func (s *BoardService) BlockReasons(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, &models.NotFoundError{TaskID: id}
	}
	return progress.BlockReasons(t, s.tasks), nil
}

func (s *BoardService) Transition(ctx context.Context, req lifecycle.TransitionRequest) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.machine.Transition(ctx, s.tasks, req)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// Act runs a named action such as "start" or "complete".
func (s *BoardService) Act(ctx context.Context, id, actor string, action lifecycle.Action, comment string) (*models.Task, error) {
	to, label, err := action.Resolve()
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, lifecycle.TransitionRequest{TaskID: id, Actor: actor, To: to, Label: label, Comment: comment})
}

func (s *BoardService) Reassign(ctx context.Context, req lifecycle.ReassignRequest) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.Owners = s.owners
	t, err := s.machine.Reassign(ctx, s.tasks, req)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

type Progress struct {
	Scope   progress.Scope `json:"scope"`
	Percent int            `json:"percent"`
}

func (s *BoardService) Progress(scope progress.Scope) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{Scope: scope, Percent: progress.Percent(s.tasks, scope)}
}

// Timer is the derived session clock for an owner's active task.
type Timer struct {
	Owner          string `json:"owner"`
	TaskID         string `json:"task_id,omitempty"`
	Title          string `json:"title,omitempty"`
	SessionSeconds int64  `json:"session_seconds"`
	TotalSeconds   int64  `json:"total_seconds"`
}

// Timer reads the owner's current session. It has no side effects; elapsed
// time is only committed by a transition.
func (s *BoardService) Timer(owner string) (Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.knownOwner(owner); err != nil {
		return Timer{}, err
	}
	tm := Timer{Owner: owner}
	active := progress.InProgressFor(s.tasks, owner)
	if active == nil {
		return tm, nil
	}
	tm.TaskID = active.TaskID
	tm.Title = active.Title
	tm.SessionSeconds = active.SessionSeconds(s.now())
	tm.TotalSeconds = active.ActualSeconds + tm.SessionSeconds
	return tm, nil
}

func (s *BoardService) OwnerActiveCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress.ActiveCounts(s.tasks, s.owners)
}

func (s *BoardService) knownOwner(owner string) error {
	i := sort.SearchStrings(s.owners, owner)
	if i < len(s.owners) && s.owners[i] == owner {
		return nil
	}
	return &models.ValidationError{Field: "owner", Value: owner, Msg: "unknown owner"}
}
