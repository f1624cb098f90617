package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Card status values.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Card priority values. An empty string means no priority is set.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Mapping sync status values.
const (
	SyncStatusSynced   = "synced"
	SyncStatusConflict = "conflict"
	SyncStatusError    = "error"
)

type Board struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type Column struct {
	ID       string `gorm:"primaryKey"`
	BoardID  string `gorm:"index"`
	Name     string
	Position int
}

func (c *Column) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type Card struct {
	ID          string `gorm:"primaryKey"`
	BoardID     string `gorm:"index"`
	ColumnID    string
	Title       string
	Description string
	Status      string `gorm:"default:pending"`
	DueDate     *time.Time
	Priority    string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// SyncMapping is the durable association between one local card and one
// remote task, plus the timestamps the conflict detector runs on. At most
// one row exists per (card, remote list); rows are never deleted by the
// sync engine itself.
type SyncMapping struct {
	ID                  string `gorm:"primaryKey"`
	CardID              string `gorm:"uniqueIndex:idx_card_list"`
	RemoteTaskID        string `gorm:"index"`
	RemoteListID        string `gorm:"uniqueIndex:idx_card_list"`
	LastSyncedAt        time.Time
	LastRemoteUpdatedAt time.Time
	LastLocalUpdatedAt  time.Time
	SyncStatus          string `gorm:"default:synced"`
	// No gorm default tag: Create skips zero-valued fields that carry one,
	// so a pair created disabled would silently persist as enabled.
	// Writers set this explicitly.
	SyncEnabled bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (m *SyncMapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ListMapping associates a board with the remote task list it syncs against,
// for a given principal. There is one row per (board, principal).
type ListMapping struct {
	ID           string `gorm:"primaryKey"`
	BoardID      string `gorm:"uniqueIndex:idx_board_principal"`
	RemoteListID string
	PrincipalID  string `gorm:"uniqueIndex:idx_board_principal"`
	// Same zero-value trap as SyncMapping.SyncEnabled: no default tag.
	SyncEnabled bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (m *ListMapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ConflictAuditEntry is an append-only record of a detected conflict and
// its resolution. Entries are written before the losing side is overwritten
// and are never mutated afterwards.
type ConflictAuditEntry struct {
	ID           string `gorm:"primaryKey"`
	CardID       string `gorm:"index"`
	MappingID    string
	EventType    string
	RemoteTaskID string
	LocalData    string // JSON snapshot of the card at detection time
	RemoteData   string // JSON snapshot of the remote task at detection time
	Resolution   string
	CreatedAt    time.Time
}

func (e *ConflictAuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
