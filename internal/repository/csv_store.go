package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/TWRT/taskboard/internal/models"
)

// CSVStore keeps the board in a single flat file. Every write rewrites the
// whole file through a temp file and rename.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string { return s.path }

// ReadCSV decodes a task table. Columns beyond Columns are ignored; missing
// required columns fail with a *models.SchemaError. When newID is non-nil it
// fills blank TaskIDs instead of rejecting the row.
func ReadCSV(r io.Reader, source string, newID func() string) ([]*models.Task, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &models.SchemaError{Source: source, Missing: RequiredColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("Error trying to read %s: %w", source, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		index[h] = i
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaError{Source: source, Missing: missing}
	}

	var tasks []*models.Task
	seen := make(map[string]struct{})
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Error trying to read %s row %d: %w", source, row, err)
		}
		if blankRecord(rec) {
			continue
		}
		if i := index["TaskID"]; newID != nil && i < len(rec) && strings.TrimSpace(rec[i]) == "" {
			rec[i] = newID()
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		t, err := decodeRecord(get, source, row)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t.TaskID]; dup {
			return nil, &models.ValidationError{TaskID: t.TaskID, Field: "TaskID", Value: t.TaskID, Msg: "duplicate id"}
		}
		seen[t.TaskID] = struct{}{}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// WriteCSV encodes tasks in order with the full Columns header.
func WriteCSV(w io.Writer, tasks []*models.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, t := range tasks {
		if err := cw.Write(encodeStrings(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *CSVStore) read() ([]*models.Task, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("Error trying to open %s: %w", s.path, err)
	}
	defer f.Close()
	return ReadCSV(f, s.path, nil)
}

func (s *CSVStore) write(tasks []*models.Task) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".taskboard-*.csv")
	if err != nil {
		return fmt.Errorf("Error trying to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, tasks); err != nil {
		tmp.Close()
		return fmt.Errorf("Error trying to write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *CSVStore) LoadAll(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return nil, err
	}
	return NewSnapshot(tasks), nil
}

// SaveAll writes every task. Rows keep their current file position; new ids
// are appended in id order.
func (s *CSVStore) SaveAll(ctx context.Context, tasks map[string]*models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var order []string
	if existing, err := s.read(); err == nil {
		for _, t := range existing {
			if _, ok := tasks[t.TaskID]; ok {
				order = append(order, t.TaskID)
			}
		}
	}
	placed := make(map[string]struct{}, len(order))
	for _, id := range order {
		placed[id] = struct{}{}
	}
	var extra []string
	for id := range tasks {
		if _, ok := placed[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)

	out := make([]*models.Task, 0, len(tasks))
	for _, id := range append(order, extra...) {
		out = append(out, tasks[id])
	}
	return s.write(out)
}

// SaveOne re-reads the file, replaces or appends the one record, and writes
// the result back, so rows changed by other writers survive.
func (s *CSVStore) SaveOne(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return err
	}
	replaced := false
	for i, t := range tasks {
		if t.TaskID == task.TaskID {
			tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		tasks = append(tasks, task)
	}
	return s.write(tasks)
}

func (s *CSVStore) LastModified(ctx context.Context) (Revision, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("Error trying to stat %s: %w", s.path, err)
	}
	return Revision(info.ModTime().UnixNano()), nil
}
