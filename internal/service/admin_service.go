package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/TWRT/taskboard/internal/models"
	"github.com/TWRT/taskboard/internal/repository"
	"github.com/TWRT/taskboard/internal/scheduler"
)

// AdminService edits task rows directly. It is a peer of the board: it skips
// the lifecycle guards on purpose and the board sees its writes on the next
// poll.
type AdminService struct {
	repo  *repository.TaskRepository
	now   func() time.Time
	newID func() string
}

func NewAdminService(repo *repository.TaskRepository, now func() time.Time) *AdminService {
	if now == nil {
		now = time.Now
	}
	return &AdminService{repo: repo, now: now, newID: uuid.NewString}
}

// TaskInput is the raw, string-typed form of a new task as typed on a
// command line or posted as JSON.
type TaskInput struct {
	TaskID         string `json:"task_id"`
	Project        string `json:"project"`
	Milestone      string `json:"milestone"`
	Title          string `json:"title"`
	Owner          string `json:"owner"`
	DependsOn      string `json:"depends_on"`
	EstimatedHours string `json:"estimated_hours"`
	Priority       string `json:"priority"`
	StartDate      string `json:"start_date"`
	DueDate        string `json:"due_date"`
	Status         string `json:"status"`
}

// EditableFields are the columns update-task may set.
var EditableFields = []string{
	"Project", "Milestone", "Task", "DependsOn", "EstimatedHours",
	"Priority", "StartDate", "DueDate", "Owner", "Status",
}

func (s *AdminService) AddTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	id := strings.TrimSpace(in.TaskID)
	if id == "" {
		id = s.newID()
	}
	t := &models.Task{TaskID: id, Status: models.StatusPending}

	fields := []struct{ name, value string }{
		{"Project", in.Project},
		{"Milestone", in.Milestone},
		{"Task", in.Title},
		{"Owner", in.Owner},
		{"EstimatedHours", in.EstimatedHours},
		{"Priority", in.Priority},
		{"StartDate", in.StartDate},
		{"DueDate", in.DueDate},
		{"DependsOn", in.DependsOn},
		{"Status", in.Status},
	}
	now := s.now()
	for _, f := range fields {
		if f.name == "Status" && f.value == "" {
			continue
		}
		if f.name != "DependsOn" && strings.TrimSpace(f.value) == "" {
			return nil, &models.ValidationError{TaskID: id, Field: f.name, Msg: "is required"}
		}
		if err := setField(t, f.name, f.value, now); err != nil {
			return nil, err
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkDeps(ctx, t); err != nil {
		return nil, err
	}

	t.LastUpdated = stamp(now)
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTask applies FIELD=VALUE assignments. Unknown fields are rejected
// before anything is written.
func (s *AdminService) UpdateTask(ctx context.Context, id string, assignments map[string]string) (*models.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, &models.ValidationError{TaskID: id, Field: "set", Msg: "no fields given"}
	}

	names := make([]string, 0, len(assignments))
	for name := range assignments {
		names = append(names, name)
	}
	sort.Strings(names)

	now := s.now()
	for _, name := range names {
		if err := setField(t, name, assignments[name], now); err != nil {
			return nil, err
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if _, ok := assignments["DependsOn"]; ok {
		if err := s.checkDeps(ctx, t); err != nil {
			return nil, err
		}
	}
	return t, s.save(ctx, t, now)
}

// SetDeps replaces the dependency list. Every id must exist and the result
// must still resolve.
func (s *AdminService) SetDeps(ctx context.Context, id string, deps []string) (*models.Task, error) {
	return s.UpdateTask(ctx, id, map[string]string{"DependsOn": models.JoinDependsOn(deps)})
}

func (s *AdminService) Reassign(ctx context.Context, id, owner string) (*models.Task, error) {
	return s.UpdateTask(ctx, id, map[string]string{"Owner": owner})
}

func (s *AdminService) SetPriority(ctx context.Context, id, priority string) (*models.Task, error) {
	return s.UpdateTask(ctx, id, map[string]string{"Priority": priority})
}

// SetStatus forces a status without lifecycle guards. Session timing is
// folded in or started so InProgressStart is set exactly while In Progress.
func (s *AdminService) SetStatus(ctx context.Context, id, status string) (*models.Task, error) {
	return s.UpdateTask(ctx, id, map[string]string{"Status": status})
}

// DeleteTask removes a row. Without force it refuses while other tasks still
// depend on it.
func (s *AdminService) DeleteTask(ctx context.Context, id string, force bool) error {
	if !force {
		snap, err := s.repo.LoadAll(ctx)
		if err != nil {
			return err
		}
		var dependents []string
		for _, t := range snap.Tasks {
			for _, d := range t.DependsOn {
				if d == id {
					dependents = append(dependents, t.TaskID)
				}
			}
		}
		if len(dependents) > 0 {
			sort.Strings(dependents)
			return &models.ValidationError{TaskID: id, Field: "TaskID", Msg: "is a dependency of " + strings.Join(dependents, ", ")}
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *AdminService) ShowTask(ctx context.Context, id string) (*models.Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *AdminService) ListTasks(ctx context.Context, f repository.ListFilter) ([]*models.Task, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, &models.ValidationError{Field: "Status", Value: string(f.Status), Msg: "unknown status"}
	}
	return s.repo.List(ctx, f)
}

func (s *AdminService) ListProjects(ctx context.Context) ([]string, error) {
	return s.repo.Projects(ctx)
}

type MilestoneRef struct {
	Project   string `json:"project" yaml:"project"`
	Milestone string `json:"milestone" yaml:"milestone"`
}

// ListMilestones lists one project's milestones, or every project's when
// project is empty.
func (s *AdminService) ListMilestones(ctx context.Context, project string) ([]MilestoneRef, error) {
	projects := []string{project}
	if project == "" {
		var err error
		if projects, err = s.repo.Projects(ctx); err != nil {
			return nil, err
		}
	}
	var out []MilestoneRef
	for _, p := range projects {
		ms, err := s.repo.Milestones(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, m := range ms {
			out = append(out, MilestoneRef{Project: p, Milestone: m})
		}
	}
	return out, nil
}

// ImportCSV bulk-loads a CSV table. Blank TaskIDs get generated ids. The
// merged result must resolve before anything is written.
func (s *AdminService) ImportCSV(ctx context.Context, r io.Reader, source string, replace bool) (int, error) {
	incoming, err := repository.ReadCSV(r, source, s.newID)
	if err != nil {
		return 0, err
	}

	merged := make(map[string]*models.Task)
	if !replace {
		snap, err := s.repo.LoadAll(ctx)
		if err != nil {
			return 0, err
		}
		merged = snap.Tasks
	}
	for _, t := range incoming {
		merged[t.TaskID] = t
	}
	if _, err := scheduler.Resolve(merged); err != nil {
		return 0, err
	}

	if err := s.repo.Import(ctx, incoming, replace); err != nil {
		return 0, err
	}
	return len(incoming), nil
}

// Export writes every task as json or yaml.
func (s *AdminService) Export(ctx context.Context, w io.Writer, format string) error {
	tasks, err := s.repo.List(ctx, repository.ListFilter{})
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tasks); err != nil {
			return err
		}
		return enc.Close()
	default:
		return &models.ValidationError{Field: "format", Value: format, Msg: "expected json or yaml"}
	}
}

type ValidationReport struct {
	Tasks int      `json:"tasks"`
	Order []string `json:"order"`
}

// Validate loads and resolves the whole store, returning the resolver's
// error when the graph is broken.
func (s *AdminService) Validate(ctx context.Context) (*ValidationReport, error) {
	snap, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	order, err := scheduler.Resolve(snap.Tasks)
	if err != nil {
		return nil, err
	}
	return &ValidationReport{Tasks: len(snap.Tasks), Order: order}, nil
}

func (s *AdminService) checkDeps(ctx context.Context, t *models.Task) error {
	if len(t.DependsOn) == 0 {
		return nil
	}
	snap, err := s.repo.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, d := range t.DependsOn {
		if d == t.TaskID {
			return &models.ValidationError{TaskID: t.TaskID, Field: "DependsOn", Value: d, Msg: "a task cannot depend on itself"}
		}
		if _, ok := snap.Tasks[d]; !ok {
			return &models.ValidationError{TaskID: t.TaskID, Field: "DependsOn", Value: d, Msg: "references an unknown task"}
		}
	}
	snap.Tasks[t.TaskID] = t
	_, err = scheduler.Resolve(snap.Tasks)
	return err
}

func (s *AdminService) save(ctx context.Context, t *models.Task, now time.Time) error {
	t.LastUpdated = stamp(now)
	return s.repo.SaveOne(ctx, t)
}

func stamp(now time.Time) *time.Time {
	ts := now.Truncate(time.Second)
	return &ts
}

// setField parses and assigns one editable column.
func setField(t *models.Task, name, value string, now time.Time) error {
	invalid := func(msg string) error {
		return &models.ValidationError{TaskID: t.TaskID, Field: name, Value: value, Msg: msg}
	}
	v := strings.TrimSpace(value)

	if v == "" && name != "DependsOn" && slices.Contains(repository.RequiredColumns, name) {
		return invalid("is required")
	}

	switch name {
	case "Project":
		t.Project = v
	case "Milestone":
		t.Milestone = v
	case "Task":
		t.Title = v
	case "Owner":
		t.Owner = v
	case "DependsOn":
		t.DependsOn = models.SplitDependsOn(v)
	case "EstimatedHours":
		h, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return invalid("is not a number")
		}
		t.EstimatedHours = h
	case "Priority":
		p, err := models.ParsePriority(v)
		if err != nil {
			return invalid("expected High, Medium or Low")
		}
		t.Priority = p
	case "StartDate", "DueDate":
		d, err := models.ParseDate(v)
		if err != nil {
			return invalid("is not a date")
		}
		if name == "StartDate" {
			t.StartDate = d
		} else {
			t.DueDate = d
		}
	case "Status":
		st, err := models.ParseStatus(v)
		if err != nil {
			return invalid("unknown status")
		}
		forceStatus(t, st, now)
	default:
		return invalid("is not editable; expected one of " + strings.Join(EditableFields, ", "))
	}
	return nil
}

// forceStatus keeps the session invariant when the status is set directly.
func forceStatus(t *models.Task, to models.Status, now time.Time) {
	if t.Status == to {
		return
	}
	if t.Status == models.StatusInProgress {
		t.ActualSeconds += t.SessionSeconds(now)
		t.ActualHours = models.RoundHours(t.ActualSeconds)
		t.InProgressStart = nil
	}
	if to == models.StatusInProgress {
		started := now
		t.InProgressStart = &started
	}
	t.AppendComment(now, fmt.Sprintf("Admin set status -> %s", to), "")
	t.Status = to
}
