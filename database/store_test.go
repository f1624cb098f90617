package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowfox/tasksync/internal/models"
	"github.com/flowfox/tasksync/syncer"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := Init(filepath.Join(t.TempDir(), "test.db"))
	return NewStore(db)
}

func TestStoreCardLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	card, err := store.InsertCard(ctx, "board-1", syncer.CardFields{
		Title:       "Imported",
		Description: "from remote",
		Status:      models.StatusPending,
		DueDate:     &due,
		Priority:    models.PriorityHigh,
		ColumnID:    "col-1",
	})
	if err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	if card.ID == "" {
		t.Fatal("InsertCard did not assign an id")
	}

	cards, err := store.ListCards(ctx, "board-1")
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(cards) != 1 || cards[0].Title != "Imported" {
		t.Fatalf("ListCards = %+v", cards)
	}

	// An overwrite clears fields the winner does not carry.
	updated, err := store.UpdateCard(ctx, card.ID, syncer.CardFields{
		Title:    "Overwritten",
		Status:   models.StatusCompleted,
		ColumnID: "col-1",
	})
	if err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if updated.Title != "Overwritten" || updated.Status != models.StatusCompleted {
		t.Errorf("updated card = %+v", updated)
	}
	if updated.Description != "" || updated.Priority != "" || updated.DueDate != nil {
		t.Errorf("cleared fields survived the overwrite: %+v", updated)
	}
}

func TestStoreListColumnsOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, col := range []models.Column{
		{BoardID: "board-1", Name: "Done", Position: 2},
		{BoardID: "board-1", Name: "To Do", Position: 0},
		{BoardID: "board-1", Name: "Doing", Position: 1},
		{BoardID: "board-2", Name: "Other", Position: 0},
	} {
		c := col
		if err := store.DB.Create(&c).Error; err != nil {
			t.Fatalf("seed column: %v", err)
		}
	}

	columns, err := store.ListColumns(ctx, "board-1")
	if err != nil {
		t.Fatalf("ListColumns: %v", err)
	}
	if len(columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(columns))
	}
	for i, want := range []string{"To Do", "Doing", "Done"} {
		if columns[i].Name != want {
			t.Errorf("columns[%d] = %q, want %q", i, columns[i].Name, want)
		}
	}
}

func TestStoreInsertMappingUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t0 := time.Now().Add(-time.Hour).Round(time.Second)
	first := &models.SyncMapping{
		CardID:       "card-1",
		RemoteTaskID: "task-1",
		RemoteListID: "list-1",
		LastSyncedAt: t0,
		SyncStatus:   models.SyncStatusSynced,
		SyncEnabled:  true,
	}
	if err := store.InsertMapping(ctx, first); err != nil {
		t.Fatalf("InsertMapping: %v", err)
	}

	// A retried or racing first-time sync hits the same (card, list) key
	// and must converge on one row instead of erroring.
	t1 := time.Now().Round(time.Second)
	second := &models.SyncMapping{
		CardID:       "card-1",
		RemoteTaskID: "task-1b",
		RemoteListID: "list-1",
		LastSyncedAt: t1,
		SyncStatus:   models.SyncStatusSynced,
		SyncEnabled:  true,
	}
	if err := store.InsertMapping(ctx, second); err != nil {
		t.Fatalf("InsertMapping upsert: %v", err)
	}

	mappings, err := store.ListMappings(ctx, []string{"card-1"})
	if err != nil {
		t.Fatalf("ListMappings: %v", err)
	}
	if len(mappings) != 1 {
		t.Fatalf("mappings = %d, want 1", len(mappings))
	}
	if mappings[0].RemoteTaskID != "task-1b" {
		t.Errorf("RemoteTaskID = %q, want task-1b", mappings[0].RemoteTaskID)
	}

	// A different list is a different pair.
	third := &models.SyncMapping{
		CardID:       "card-1",
		RemoteTaskID: "task-2",
		RemoteListID: "list-2",
		LastSyncedAt: t1,
		SyncStatus:   models.SyncStatusSynced,
		SyncEnabled:  true,
	}
	if err := store.InsertMapping(ctx, third); err != nil {
		t.Fatalf("InsertMapping other list: %v", err)
	}
	mappings, err = store.ListMappings(ctx, []string{"card-1"})
	if err != nil {
		t.Fatalf("ListMappings: %v", err)
	}
	if len(mappings) != 2 {
		t.Errorf("mappings = %d, want 2", len(mappings))
	}
}

func TestStoreInsertMappingKeepsDisabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mapping := &models.SyncMapping{
		CardID:       "card-1",
		RemoteTaskID: "task-1",
		RemoteListID: "list-1",
		LastSyncedAt: time.Now(),
		SyncStatus:   models.SyncStatusSynced,
		SyncEnabled:  false,
	}
	if err := store.InsertMapping(ctx, mapping); err != nil {
		t.Fatalf("InsertMapping: %v", err)
	}

	mappings, err := store.ListMappings(ctx, []string{"card-1"})
	if err != nil {
		t.Fatalf("ListMappings: %v", err)
	}
	if len(mappings) != 1 || mappings[0].SyncEnabled {
		t.Errorf("disabled mapping persisted as %+v, want SyncEnabled=false", mappings)
	}
}

func TestStoreUpdateMapping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mapping := &models.SyncMapping{
		CardID:       "card-1",
		RemoteTaskID: "task-1",
		RemoteListID: "list-1",
		LastSyncedAt: time.Now().Add(-time.Hour),
		SyncStatus:   models.SyncStatusConflict,
		SyncEnabled:  true,
	}
	if err := store.InsertMapping(ctx, mapping); err != nil {
		t.Fatalf("InsertMapping: %v", err)
	}

	now := time.Now().Round(time.Second)
	err := store.UpdateMapping(ctx, mapping.ID, syncer.MappingUpdate{
		LastSyncedAt:        now,
		LastRemoteUpdatedAt: now,
		LastLocalUpdatedAt:  now,
		SyncStatus:          models.SyncStatusSynced,
	})
	if err != nil {
		t.Fatalf("UpdateMapping: %v", err)
	}

	mappings, err := store.ListMappings(ctx, []string{"card-1"})
	if err != nil {
		t.Fatalf("ListMappings: %v", err)
	}
	if mappings[0].SyncStatus != models.SyncStatusSynced {
		t.Errorf("SyncStatus = %q, want synced", mappings[0].SyncStatus)
	}
	if !mappings[0].LastSyncedAt.Equal(now) {
		t.Errorf("LastSyncedAt = %v, want %v", mappings[0].LastSyncedAt, now)
	}
}

func TestStoreListEnabledListMappings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, m := range []models.ListMapping{
		{BoardID: "board-1", RemoteListID: "list-1", PrincipalID: "user-1", SyncEnabled: true},
		{BoardID: "board-2", RemoteListID: "list-2", PrincipalID: "user-1", SyncEnabled: false},
		{BoardID: "board-3", RemoteListID: "list-3", PrincipalID: "user-2", SyncEnabled: true},
	} {
		lm := m
		if err := store.DB.Create(&lm).Error; err != nil {
			t.Fatalf("seed list mapping: %v", err)
		}
	}

	mappings, err := store.ListEnabledListMappings(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListEnabledListMappings: %v", err)
	}
	if len(mappings) != 1 || mappings[0].BoardID != "board-1" {
		t.Errorf("mappings = %+v, want only user-1's enabled mapping", mappings)
	}
}

func TestStoreAuditEntriesAppend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := store.InsertAuditEntry(ctx, &models.ConflictAuditEntry{
			CardID:       "card-1",
			MappingID:    "m-1",
			EventType:    "sync_conflict",
			RemoteTaskID: "task-1",
			LocalData:    `{"title":"local"}`,
			RemoteData:   `{"title":"remote"}`,
			Resolution:   "last-write-wins: remote",
		})
		if err != nil {
			t.Fatalf("InsertAuditEntry: %v", err)
		}
	}

	var count int64
	if err := store.DB.Model(&models.ConflictAuditEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count audit entries: %v", err)
	}
	if count != 2 {
		t.Errorf("audit entries = %d, want 2", count)
	}
}
