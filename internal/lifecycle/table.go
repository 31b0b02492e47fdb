package lifecycle

import "github.com/TWRT/taskboard/internal/models"

// transitions lists the legal targets for each status. Canceled is terminal;
// Completed only reopens to Pending.
var transitions = map[models.Status][]models.Status{
	models.StatusPending:    {models.StatusInProgress, models.StatusCanceled},
	models.StatusPaused:     {models.StatusInProgress, models.StatusCanceled},
	models.StatusInProgress: {models.StatusPaused, models.StatusCompleted, models.StatusCanceled},
	models.StatusCompleted:  {models.StatusPending},
	models.StatusCanceled:   nil,
}

// Allowed reports whether the table permits from -> to.
func Allowed(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Targets returns the statuses reachable from from in one step.
func Targets(from models.Status) []models.Status {
	return append([]models.Status(nil), transitions[from]...)
}

// Action is a named board operation mapped onto a target status.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionReopen   Action = "reopen"
)

var actions = map[Action]struct {
	target models.Status
	label  string
}{
	ActionStart:    {models.StatusInProgress, "Start"},
	ActionPause:    {models.StatusPaused, "Pause"},
	ActionComplete: {models.StatusCompleted, "Complete"},
	ActionCancel:   {models.StatusCanceled, "Cancel"},
	ActionReopen:   {models.StatusPending, "Reopen"},
}

// Resolve maps an action name to its target status and audit label.
func (a Action) Resolve() (models.Status, string, error) {
	def, ok := actions[a]
	if !ok {
		return "", "", &models.ValidationError{Field: "action", Value: string(a), Msg: "expected start, pause, complete, cancel or reopen"}
	}
	return def.target, def.label, nil
}

// DefaultLabel is the audit label used when the caller supplies none.
func DefaultLabel(to models.Status) string {
	return "Status -> " + string(to)
}
