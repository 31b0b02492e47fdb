package scheduler

import (
	"testing"
	"time"

	"github.com/TWRT/taskboard/internal/models"
)

func at(day, hour, min int) time.Time {
	return time.Date(2025, time.August, day, hour, min, 0, 0, time.UTC)
}

func hoursTask(id string, hours float64) *models.Task {
	return &models.Task{TaskID: id, EstimatedHours: hours, Priority: models.PriorityMedium}
}

// workable counts time between from and to that falls inside working hours
// and outside lunch.
func workable(w WorkingHours, from, to time.Time) time.Duration {
	var total time.Duration
	for day := w.at(from, 0); day.Before(to); day = day.AddDate(0, 0, 1) {
		for _, span := range [][2]time.Duration{{w.DayStart, w.LunchStart}, {w.LunchEnd, w.DayEnd}} {
			s, e := day.Add(span[0]), day.Add(span[1])
			if s.Before(from) {
				s = from
			}
			if e.After(to) {
				e = to
			}
			if e.After(s) {
				total += e.Sub(s)
			}
		}
	}
	return total
}

func overlapsLunch(w WorkingHours, s Slot) bool {
	for day := w.at(s.Start, 0); day.Before(s.End); day = day.AddDate(0, 0, 1) {
		ls, le := day.Add(w.LunchStart), day.Add(w.LunchEnd)
		// A window may span lunch, but it must not start or end inside it.
		if (!s.Start.Before(ls) && s.Start.Before(le)) || (s.End.After(ls) && s.End.Before(le)) {
			return true
		}
	}
	return false
}

func TestAllocate_Cases(t *testing.T) {
	w := DefaultWorkingHours
	tests := []struct {
		name      string
		from      time.Time
		hours     float64
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"morning fits before lunch", at(10, 9, 0), 2, at(10, 9, 0), at(10, 11, 0)},
		{"early start snaps to day start", at(10, 6, 30), 1, at(10, 9, 0), at(10, 10, 0)},
		{"inside lunch snaps to lunch end", at(10, 12, 20), 1, at(10, 13, 0), at(10, 14, 0)},
		{"after hours moves to next day", at(10, 17, 0), 1, at(11, 9, 0), at(11, 10, 0)},
		{"splits around lunch", at(10, 11, 0), 3, at(10, 11, 0), at(10, 15, 0)},
		{"spills into next day", at(10, 15, 0), 4, at(10, 15, 0), at(11, 11, 0)},
		{"fractional hours", at(10, 11, 30), 1.5, at(10, 11, 30), at(10, 14, 0)},
		{"multi-day", at(10, 9, 0), 14, at(10, 9, 0), at(11, 17, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := w.Allocate([]*models.Task{hoursTask("x", tt.hours)}, tt.from)
			if len(slots) != 1 {
				t.Fatalf("expected 1 slot, got %d", len(slots))
			}
			if !slots[0].Start.Equal(tt.wantStart) {
				t.Errorf("start: expected %v, got %v", tt.wantStart, slots[0].Start)
			}
			if !slots[0].End.Equal(tt.wantEnd) {
				t.Errorf("end: expected %v, got %v", tt.wantEnd, slots[0].End)
			}
		})
	}
}

func TestAllocate_SequentialNonOverlappingAndFaithful(t *testing.T) {
	w := DefaultWorkingHours
	tasks := []*models.Task{
		hoursTask("a", 2.5),
		hoursTask("b", 4),
		hoursTask("c", 0.75),
		hoursTask("d", 9),
		hoursTask("e", 1),
	}

	slots := w.Allocate(tasks, at(10, 10, 15))
	if len(slots) != len(tasks) {
		t.Fatalf("expected %d slots, got %d", len(tasks), len(slots))
	}

	for i, s := range slots {
		if s.TaskID != tasks[i].TaskID {
			t.Errorf("slot %d: expected %s, got %s", i, tasks[i].TaskID, s.TaskID)
		}
		if i > 0 && s.Start.Before(slots[i-1].End) {
			t.Errorf("slot %s starts %v before previous end %v", s.TaskID, s.Start, slots[i-1].End)
		}
		if overlapsLunch(w, s) {
			t.Errorf("slot %s [%v, %v] starts or ends inside lunch", s.TaskID, s.Start, s.End)
		}
		want := time.Duration(tasks[i].EstimatedHours * float64(time.Hour))
		if got := workable(w, s.Start, s.End); got != want {
			t.Errorf("slot %s: expected %v workable, got %v", s.TaskID, want, got)
		}
	}
}

func TestAllocate_DoesNotModifyTasks(t *testing.T) {
	tk := hoursTask("a", 1)
	DefaultWorkingHours.Allocate([]*models.Task{tk}, at(10, 9, 0))
	if tk.ScheduledStart != nil || tk.ScheduledEnd != nil {
		t.Error("expected task schedule fields untouched")
	}
}

func TestAllocate_LargestEstimate(t *testing.T) {
	// 1,000,000h is 142,857 seven-hour days plus one hour.
	slots := DefaultWorkingHours.Allocate([]*models.Task{hoursTask("big", models.MaxEstimatedHours)}, at(10, 9, 0))
	want := at(10, 10, 0).AddDate(0, 0, 142857)
	if !slots[0].Start.Equal(at(10, 9, 0)) || !slots[0].End.Equal(want) {
		t.Errorf("slot = %v - %v, want end %v", slots[0].Start, slots[0].End, want)
	}
}

func TestNewWorkingHours_Validation(t *testing.T) {
	if _, err := NewWorkingHours(9, 12, 13, 17); err != nil {
		t.Errorf("expected default hours to validate, got %v", err)
	}
	bad := [][4]int{
		{17, 12, 13, 9},
		{9, 8, 13, 17},
		{9, 13, 12, 17},
		{9, 12, 13, 25},
		{9, 9, 9, 9},
	}
	for _, b := range bad {
		if _, err := NewWorkingHours(b[0], b[1], b[2], b[3]); err == nil {
			t.Errorf("expected error for %v", b)
		}
	}
}
