package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/TWRT/taskboard/internal/models"
)

var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
)

// ConfigureColor turns styling off when f is not a terminal.
func ConfigureColor(f *os.File) {
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		color.NoColor = true
	}
}

func StatusIcon(s models.Status) string {
	switch s {
	case models.StatusCompleted:
		return Green("✓")
	case models.StatusInProgress:
		return Cyan("●")
	case models.StatusPaused:
		return Yellow("‖")
	case models.StatusCanceled:
		return Dim("⊘")
	default:
		return Dim("◌")
	}
}

func PriorityLabel(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return BoldRed(string(p))
	case models.PriorityMedium:
		return Yellow(string(p))
	case models.PriorityLow:
		return Dim(string(p))
	default:
		return string(p)
	}
}

// Hours renders an hour count like "1,250.5h" with at most two decimals.
func Hours(h float64) string {
	return humanize.CommafWithDigits(h, 2) + "h"
}

// Ago renders a timestamp relative to now, or "never".
func Ago(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}

// TaskLine is the one-line summary used by list output.
func TaskLine(t *models.Task, now time.Time) string {
	deps := ""
	if len(t.DependsOn) > 0 {
		deps = Dim(" ← " + strings.Join(t.DependsOn, ", "))
	}
	return fmt.Sprintf("%s %s  %s  [%s] %s / %s  %s  %s%s  %s",
		StatusIcon(t.Status),
		BoldMagenta(t.TaskID),
		t.Title,
		PriorityLabel(t.Priority),
		t.Project,
		t.Milestone,
		Cyan(t.Owner),
		Hours(t.EstimatedHours),
		deps,
		Dim("updated "+Ago(t.LastUpdated, now)),
	)
}

// PrintTask writes the detailed view of one task, including its comment log.
func PrintTask(w io.Writer, t *models.Task, now time.Time) {
	fmt.Fprintf(w, "%s %s %s\n", StatusIcon(t.Status), BoldMagenta(t.TaskID), Bold(t.Title))
	row := func(label, value string) {
		fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
	}
	row("Project", t.Project)
	row("Milestone", t.Milestone)
	row("Owner", Cyan(t.Owner))
	row("Status", string(t.Status))
	row("Priority", PriorityLabel(t.Priority))
	row("Estimate", Hours(t.EstimatedHours))
	row("Actual", fmt.Sprintf("%s (%s)", Hours(t.ActualHours), humanize.Comma(t.ActualSeconds)+"s"))
	row("Dates", t.StartDate.Format(models.DateLayout)+" → "+t.DueDate.Format(models.DateLayout))
	if len(t.DependsOn) > 0 {
		row("Depends on", strings.Join(t.DependsOn, ", "))
	}
	if t.InProgressStart != nil {
		row("Session", "started "+Ago(t.InProgressStart, now))
	}
	row("Updated", Ago(t.LastUpdated, now))

	entries := t.Entries()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w, "  "+Dim("History:"))
	for _, e := range entries {
		fmt.Fprintf(w, "    %s %s %s\n", Dim(e.At.Format(models.TimestampLayout)), Bold(e.Action), e.Comment)
	}
}
