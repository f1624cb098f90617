package syncer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flowfox/tasksync/internal/models"
)

var priorityTagRe = regexp.MustCompile(`(?i)\[priority:\s*(low|medium|high|critical)\]`)

// hashtag markers checked most-severe first, so a note carrying several
// resolves to the highest priority present.
var priorityHashtags = []string{
	models.PriorityCritical,
	models.PriorityHigh,
	models.PriorityMedium,
	models.PriorityLow,
}

// ToLocal converts a remote task into the fields of a local card. Column
// and position come from the caller; the remote system has no opinion on
// board layout.
func ToLocal(task models.RemoteTask, columnID string, position int) CardFields {
	description, priority := parseNotes(task.Notes)

	status := models.StatusPending
	if task.Status == models.RemoteStatusCompleted {
		status = models.StatusCompleted
	}

	return CardFields{
		Title:       task.Title,
		Description: description,
		Status:      status,
		DueDate:     task.Due,
		Priority:    priority,
		ColumnID:    columnID,
		Position:    position,
	}
}

// ToRemote converts a local card into the fields of a remote task. The
// card's priority, which the remote system has no field for, is encoded as
// a leading tag line inside the free-text notes.
func ToRemote(card models.Card) RemoteTaskFields {
	status := models.RemoteStatusNeedsAction
	if card.Status == models.StatusCompleted {
		status = models.RemoteStatusCompleted
	}

	return RemoteTaskFields{
		Title:  card.Title,
		Notes:  buildNotes(card),
		Status: status,
		Due:    card.DueDate,
	}
}

// parseNotes extracts a priority from remote notes and returns the notes
// with the bracket tag removed. The bracket form takes precedence over
// hashtag markers; notes matching neither yield an empty priority. The
// encoding is best effort: free text that never carried a tag simply
// round-trips without one.
func parseNotes(notes string) (description, priority string) {
	if m := priorityTagRe.FindStringSubmatch(notes); m != nil {
		description = strings.TrimSpace(priorityTagRe.ReplaceAllString(notes, ""))
		return description, strings.ToLower(m[1])
	}

	lower := strings.ToLower(notes)
	for _, p := range priorityHashtags {
		if strings.Contains(lower, "#"+p) {
			return notes, p
		}
	}

	return notes, ""
}

// buildNotes renders "[Priority: X]\n\n{description}", omitting either part
// when absent.
func buildNotes(card models.Card) string {
	var parts []string
	if card.Priority != "" {
		parts = append(parts, fmt.Sprintf("[Priority: %s]", capitalize(card.Priority)))
	}
	if card.Description != "" {
		parts = append(parts, card.Description)
	}
	return strings.Join(parts, "\n\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
