// Package syncer implements bi-directional synchronization between local
// kanban cards and a remote task list. One sync pass reconciles a single
// (board, remote list) pair: unmatched remote tasks become new cards,
// unmatched cards become new remote tasks, and matched pairs are brought
// back in step with last-write-wins conflict resolution.
package syncer

import (
	"context"
	"time"

	"github.com/flowfox/tasksync/internal/models"
)

// CardFields is the transformer's output for the local side. Zero-valued
// optional fields mean "absent".
type CardFields struct {
	Title       string
	Description string
	Status      string
	DueDate     *time.Time
	Priority    string
	ColumnID    string
	Position    int
}

// RemoteTaskFields is the transformer's output for the remote side.
type RemoteTaskFields struct {
	Title  string
	Notes  string
	Status string
	Due    *time.Time
}

// CardStore is the slice of the application's persistence the orchestrator
// reads cards and columns through.
type CardStore interface {
	ListCards(ctx context.Context, boardID string) ([]models.Card, error)
	// ListColumns returns the board's columns ordered by position ascending.
	ListColumns(ctx context.Context, boardID string) ([]models.Column, error)
	InsertCard(ctx context.Context, boardID string, fields CardFields) (*models.Card, error)
	UpdateCard(ctx context.Context, cardID string, fields CardFields) (*models.Card, error)
}

// MappingStore persists the card↔task associations and the conflict audit
// trail. InsertMapping must upsert on the (card id, remote list id) unique
// key so that a retried or racing first-time sync cannot create duplicates.
type MappingStore interface {
	ListMappings(ctx context.Context, cardIDs []string) ([]models.SyncMapping, error)
	InsertMapping(ctx context.Context, mapping *models.SyncMapping) error
	UpdateMapping(ctx context.Context, mappingID string, update MappingUpdate) error
	InsertAuditEntry(ctx context.Context, entry *models.ConflictAuditEntry) error
	ListEnabledListMappings(ctx context.Context, principalID string) ([]models.ListMapping, error)
}

// MappingUpdate carries the bookkeeping fields rewritten after a successful
// pass over a matched pair.
type MappingUpdate struct {
	LastSyncedAt        time.Time
	LastRemoteUpdatedAt time.Time
	LastLocalUpdatedAt  time.Time
	SyncStatus          string
}

// Store combines the persistence surfaces the orchestrator needs.
type Store interface {
	CardStore
	MappingStore
}

// RemoteTasks is the capability contract for the external task system.
// Every call is a network round trip; errors are transport errors.
type RemoteTasks interface {
	ListTaskLists(ctx context.Context) ([]models.RemoteTaskList, error)
	ListTasks(ctx context.Context, listID string, includeCompleted bool) ([]models.RemoteTask, error)
	CreateTask(ctx context.Context, listID string, fields RemoteTaskFields) (*models.RemoteTask, error)
	UpdateTask(ctx context.Context, listID, taskID string, fields RemoteTaskFields) (*models.RemoteTask, error)
	DeleteTask(ctx context.Context, listID, taskID string) error
}
