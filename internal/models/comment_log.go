package models

import (
	"fmt"
	"strings"
	"time"
)

// CommentEntry is one line of a task's audit trail:
// "timestamp | action-label: comment".
type CommentEntry struct {
	At      time.Time `json:"at" yaml:"at"`
	Action  string    `json:"action" yaml:"action"`
	Comment string    `json:"comment,omitempty" yaml:"comment,omitempty"`
}

func (e CommentEntry) String() string {
	return fmt.Sprintf("%s | %s: %s", FormatTimestamp(e.At), e.Action, e.Comment)
}

// AppendComment adds an audit entry and refreshes LastComment and LastUpdated.
// An empty comment clears LastComment.
func (t *Task) AppendComment(at time.Time, action, comment string) {
	entry := CommentEntry{At: at, Action: action, Comment: strings.ReplaceAll(comment, "\n", " ")}.String()
	if t.CommentLog == "" {
		t.CommentLog = entry
	} else {
		t.CommentLog = t.CommentLog + "\n" + entry
	}
	if comment == "" {
		t.LastComment = nil
	} else {
		c := comment
		t.LastComment = &c
	}
	ts := at.Truncate(time.Second)
	t.LastUpdated = &ts
}

// Entries parses CommentLog. Lines that do not follow the entry format are
// kept as comments with a zero timestamp so nothing in the trail is dropped.
func (t *Task) Entries() []CommentEntry {
	if strings.TrimSpace(t.CommentLog) == "" {
		return nil
	}
	lines := strings.Split(t.CommentLog, "\n")
	entries := make([]CommentEntry, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		entries = append(entries, parseEntry(line))
	}
	return entries
}

func parseEntry(line string) CommentEntry {
	ts, rest, ok := strings.Cut(line, " | ")
	if !ok {
		return CommentEntry{Comment: line}
	}
	at, err := ParseTimestamp(ts)
	if err != nil {
		return CommentEntry{Comment: line}
	}
	action, comment, _ := strings.Cut(rest, ":")
	return CommentEntry{At: at, Action: action, Comment: strings.TrimPrefix(comment, " ")}
}
