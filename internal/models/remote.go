package models

import "time"

// Remote task status values, as defined by the Google Tasks API.
const (
	RemoteStatusNeedsAction = "needsAction"
	RemoteStatusCompleted   = "completed"
)

// RemoteTask is a task as reported by the remote system. It is a wire type,
// never persisted locally; the remote side owns id assignment and stamps
// Updated on every write.
type RemoteTask struct {
	ID      string
	Title   string
	Notes   string
	Status  string
	Due     *time.Time
	Updated time.Time
}

// RemoteTaskList is a task list as reported by the remote system.
type RemoteTaskList struct {
	ID      string
	Title   string
	Updated time.Time
}
