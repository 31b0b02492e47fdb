package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TWRT/taskboard/internal/models"
)

// Columns is the persisted record layout shared by every store.
var Columns = []string{
	"TaskID", "Project", "Milestone", "Task", "DependsOn", "EstimatedHours", "Priority",
	"StartDate", "DueDate", "Owner", "Status", "ActualHours", "ActualSeconds",
	"InProgressStart", "LastComment", "CommentLog", "LastUpdated",
}

// RequiredColumns must be present in every record set.
var RequiredColumns = []string{
	"Project", "Milestone", "Task", "TaskID", "DependsOn",
	"EstimatedHours", "Priority", "StartDate", "DueDate", "Owner",
}

// sessionLayout keeps sub-second precision so elapsed time survives a reload.
const sessionLayout = "2006-01-02T15:04:05.999999"

// decodeRecord builds a task from one record. get returns "" for absent or
// NULL fields.
func decodeRecord(get func(col string) string, source string, row int) (*models.Task, error) {
	var missing []string
	for _, col := range RequiredColumns {
		if col == "DependsOn" {
			continue
		}
		if strings.TrimSpace(get(col)) == "" {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaError{Source: source, Row: row, Missing: missing}
	}

	id := strings.TrimSpace(get("TaskID"))
	invalid := func(field, value, msg string) error {
		return &models.ValidationError{TaskID: id, Field: field, Value: value, Msg: msg}
	}

	t := &models.Task{
		TaskID:     id,
		Project:    get("Project"),
		Milestone:  get("Milestone"),
		Title:      get("Task"),
		Owner:      strings.TrimSpace(get("Owner")),
		DependsOn:  models.SplitDependsOn(get("DependsOn")),
		Priority:   models.Priority(strings.TrimSpace(get("Priority"))),
		CommentLog: get("CommentLog"),
	}

	var err error
	raw := get("EstimatedHours")
	if t.EstimatedHours, err = strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
		return nil, invalid("EstimatedHours", raw, "is not a number")
	}
	if t.StartDate, err = models.ParseDate(get("StartDate")); err != nil {
		return nil, invalid("StartDate", get("StartDate"), "is not a date")
	}
	if t.DueDate, err = models.ParseDate(get("DueDate")); err != nil {
		return nil, invalid("DueDate", get("DueDate"), "is not a date")
	}
	if t.Status, err = models.ParseStatus(get("Status")); err != nil {
		return nil, invalid("Status", get("Status"), "unknown status")
	}
	if v := strings.TrimSpace(get("ActualHours")); v != "" {
		if t.ActualHours, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, invalid("ActualHours", v, "is not a number")
		}
	}
	if v := strings.TrimSpace(get("ActualSeconds")); v != "" {
		if t.ActualSeconds, err = parseSeconds(v); err != nil {
			return nil, invalid("ActualSeconds", v, "is not a whole number")
		}
	}
	if t.Status == models.StatusInProgress {
		v := strings.TrimSpace(get("InProgressStart"))
		if v == "" {
			return nil, invalid("InProgressStart", "", "is required while In Progress")
		}
		ts, err := models.ParseTimestamp(v)
		if err != nil {
			return nil, invalid("InProgressStart", v, "is not a timestamp")
		}
		t.InProgressStart = &ts
	}
	if v := get("LastComment"); v != "" {
		t.LastComment = &v
	}
	if v := strings.TrimSpace(get("LastUpdated")); v != "" {
		ts, err := models.ParseTimestamp(v)
		if err != nil {
			return nil, invalid("LastUpdated", v, "is not a timestamp")
		}
		t.LastUpdated = &ts
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// parseSeconds accepts "42" and the "42.0" some spreadsheet exports write.
func parseSeconds(v string) (int64, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("not a whole number: %q", v)
	}
	return int64(f), nil
}

// encodeRecord renders a task in Columns order. Nullable fields are nil.
func encodeRecord(t *models.Task) []any {
	return []any{
		t.TaskID,
		t.Project,
		t.Milestone,
		t.Title,
		models.JoinDependsOn(t.DependsOn),
		t.EstimatedHours,
		string(t.Priority),
		formatDate(t.StartDate),
		formatDate(t.DueDate),
		t.Owner,
		string(t.Status),
		t.ActualHours,
		t.ActualSeconds,
		formatTime(t.InProgressStart, sessionLayout),
		nullableString(t.LastComment),
		nullableText(t.CommentLog),
		formatTime(t.LastUpdated, models.TimestampLayout),
	}
}

// encodeStrings renders a task in Columns order for tabular files.
func encodeStrings(t *models.Task) []string {
	values := encodeRecord(t)
	out := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = x
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case int64:
			out[i] = strconv.FormatInt(x, 10)
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

func formatTime(t *time.Time, layout string) any {
	if t == nil {
		return nil
	}
	return t.Format(layout)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
