package scheduler

import (
	"fmt"
	"time"

	"github.com/TWRT/taskboard/internal/models"
)

// WorkingHours describes one workable day as offsets from midnight. Every
// calendar day is workable; there is no weekend or holiday awareness.
type WorkingHours struct {
	DayStart   time.Duration
	LunchStart time.Duration
	LunchEnd   time.Duration
	DayEnd     time.Duration
}

// DefaultWorkingHours is 09:00-17:00 with lunch from 12:00 to 13:00.
var DefaultWorkingHours = WorkingHours{
	DayStart:   9 * time.Hour,
	LunchStart: 12 * time.Hour,
	LunchEnd:   13 * time.Hour,
	DayEnd:     17 * time.Hour,
}

// NewWorkingHours builds WorkingHours from whole hours of the day.
func NewWorkingHours(dayStart, lunchStart, lunchEnd, dayEnd int) (WorkingHours, error) {
	w := WorkingHours{
		DayStart:   time.Duration(dayStart) * time.Hour,
		LunchStart: time.Duration(lunchStart) * time.Hour,
		LunchEnd:   time.Duration(lunchEnd) * time.Hour,
		DayEnd:     time.Duration(dayEnd) * time.Hour,
	}
	return w, w.Validate()
}

func (w WorkingHours) Validate() error {
	if w.DayStart < 0 || w.DayEnd > 24*time.Hour {
		return fmt.Errorf("working day %s-%s must fall within one day", w.DayStart, w.DayEnd)
	}
	if w.DayStart >= w.DayEnd {
		return fmt.Errorf("working day start %s must be before end %s", w.DayStart, w.DayEnd)
	}
	if w.LunchStart < w.DayStart || w.LunchEnd > w.DayEnd || w.LunchStart > w.LunchEnd {
		return fmt.Errorf("lunch %s-%s must fall inside the working day %s-%s", w.LunchStart, w.LunchEnd, w.DayStart, w.DayEnd)
	}
	return nil
}

// Slot is the window allocated to one task.
type Slot struct {
	TaskID string    `json:"task_id" yaml:"task_id"`
	Start  time.Time `json:"start" yaml:"start"`
	End    time.Time `json:"end" yaml:"end"`
}

// Allocate lays tasks end to end starting at from, consuming each task's
// EstimatedHours of workable time. Windows never overlap and never include
// lunch; a window that spans lunch or the end of a day simply continues after
// it. The tasks are not modified.
func (w WorkingHours) Allocate(tasks []*models.Task, from time.Time) []Slot {
	slots := make([]Slot, 0, len(tasks))
	cursor := from
	for _, t := range tasks {
		remaining := time.Duration(t.EstimatedHours * float64(time.Hour))
		var start time.Time
		started := false
		for remaining > 0 {
			dayStart := w.at(cursor, w.DayStart)
			lunchStart := w.at(cursor, w.LunchStart)
			lunchEnd := w.at(cursor, w.LunchEnd)
			dayEnd := w.at(cursor, w.DayEnd)

			switch {
			case cursor.Before(dayStart):
				cursor = dayStart
			case !cursor.Before(lunchStart) && cursor.Before(lunchEnd):
				cursor = lunchEnd
			case !cursor.Before(dayEnd):
				cursor = w.at(cursor.AddDate(0, 0, 1), w.DayStart)
			default:
				if !started {
					start = cursor
					started = true
				}
				limit := dayEnd.Sub(cursor)
				if cursor.Before(lunchStart) {
					limit = lunchStart.Sub(cursor)
				}
				step := min(remaining, limit)
				cursor = cursor.Add(step)
				remaining -= step
			}
		}
		if !started {
			start = cursor
		}
		slots = append(slots, Slot{TaskID: t.TaskID, Start: start, End: cursor})
	}
	return slots
}

// at returns the instant offset past midnight on the calendar day of ref.
func (w WorkingHours) at(ref time.Time, offset time.Duration) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ref.Location()).Add(offset)
}
