package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/TWRT/taskboard/internal/models"
)

// TaskRepository is the SQLite-backed Store. It also carries the row-level
// operations the admin tool needs.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

var (
	selectColumns = strings.Join(Columns, ", ")
	upsertQuery   = buildUpsert()
)

func buildUpsert() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	sets := make([]string, 0, len(Columns)-1)
	for _, c := range Columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf(
		"INSERT INTO tasks (%s) VALUES (%s) ON CONFLICT(TaskID) DO UPDATE SET %s",
		selectColumns, placeholders, strings.Join(sets, ", "),
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner, n int) (*models.Task, error) {
	fields := make([]sql.NullString, len(Columns))
	dest := make([]any, len(fields))
	for i := range fields {
		dest[i] = &fields[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	index := make(map[string]string, len(Columns))
	for i, c := range Columns {
		index[c] = fields[i].String
	}
	return decodeRecord(func(col string) string { return index[col] }, "tasks", n)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Error trying to get tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for n := 1; rows.Next(); n++ {
		t, err := scanTask(rows, n)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) LoadAll(ctx context.Context) (*Snapshot, error) {
	tasks, err := r.queryTasks(ctx, "SELECT "+selectColumns+" FROM tasks ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	return NewSnapshot(tasks), nil
}

func (r *TaskRepository) SaveAll(ctx context.Context, tasks map[string]*models.Task) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tasks {
			if _, err := tx.ExecContext(ctx, upsertQuery, encodeRecord(t)...); err != nil {
				return fmt.Errorf("Error trying to save task %s: %w", t.TaskID, err)
			}
		}
		return nil
	})
}

func (r *TaskRepository) SaveOne(ctx context.Context, task *models.Task) error {
	if _, err := r.db.ExecContext(ctx, upsertQuery, encodeRecord(task)...); err != nil {
		return fmt.Errorf("Error trying to save task %s: %w", task.TaskID, err)
	}
	return nil
}

func (r *TaskRepository) LastModified(ctx context.Context) (Revision, error) {
	var rev int64
	err := r.db.QueryRowContext(ctx, `SELECT revision FROM store_meta WHERE id = 1`).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("Error trying to read revision: %w", err)
	}
	return Revision(rev), nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*models.Task, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM tasks WHERE TaskID = ?", id)
	t, err := scanTask(row, 1)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{TaskID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("Error trying to get task %s: %w", id, err)
	}
	return t, nil
}

// Create inserts a new task and refuses to overwrite an existing id.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE TaskID = ?`, task.TaskID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return &models.ValidationError{TaskID: task.TaskID, Field: "TaskID", Value: task.TaskID, Msg: "already exists"}
		}
		if _, err := tx.ExecContext(ctx, upsertQuery, encodeRecord(task)...); err != nil {
			return fmt.Errorf("Error trying to create task %s: %w", task.TaskID, err)
		}
		return nil
	})
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE TaskID = ?`, id)
	if err != nil {
		return fmt.Errorf("Error trying to delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{TaskID: id}
	}
	return nil
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Project   string
	Milestone string
	Owner     string
	Status    models.Status
}

const priorityOrder = `CASE Priority WHEN 'High' THEN 1 WHEN 'Medium' THEN 2 WHEN 'Low' THEN 3 ELSE 99 END`

func (r *TaskRepository) List(ctx context.Context, f ListFilter) ([]*models.Task, error) {
	var where []string
	var args []any
	add := func(col, v string) {
		if v != "" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}
	add("Project", f.Project)
	add("Milestone", f.Milestone)
	add("Owner", f.Owner)
	add("Status", string(f.Status))

	query := "SELECT " + selectColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY Project, Milestone, " + priorityOrder + ", TaskID"
	return r.queryTasks(ctx, query, args...)
}

func (r *TaskRepository) Projects(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT Project FROM tasks ORDER BY Project`)
}

func (r *TaskRepository) Milestones(ctx context.Context, project string) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT Milestone FROM tasks WHERE Project = ? ORDER BY Milestone`, project)
}

func (r *TaskRepository) distinct(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Error trying to list values: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Import upserts tasks in one transaction. With replace set, existing rows
// are removed first.
func (r *TaskRepository) Import(ctx context.Context, tasks []*models.Task, replace bool) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if replace {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
				return fmt.Errorf("Error trying to clear tasks: %w", err)
			}
		}
		for _, t := range tasks {
			if _, err := tx.ExecContext(ctx, upsertQuery, encodeRecord(t)...); err != nil {
				return fmt.Errorf("Error trying to import task %s: %w", t.TaskID, err)
			}
		}
		return nil
	})
}

func (r *TaskRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Error trying to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
