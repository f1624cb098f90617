package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowfox/tasksync/internal/models"
	"go.uber.org/zap"
)

// RemoteFactory builds a remote client bound to the caller's bearer token.
// Token acquisition and refresh happen outside the engine; every sync call
// carries the token it was invoked with.
type RemoteFactory func(token string) RemoteTasks

// SyncResult aggregates the outcome of one pass over a (board, remote list)
// pair. Per-item failures land in Errors and never abort the pass; Success
// is false only when the pass could not start at all (bulk loads failed).
type SyncResult struct {
	Success      bool     `json:"success"`
	CardsCreated int      `json:"cardsCreated"`
	CardsUpdated int      `json:"cardsUpdated"`
	TasksCreated int      `json:"tasksCreated"`
	TasksUpdated int      `json:"tasksUpdated"`
	Conflicts    int      `json:"conflicts"`
	Errors       []string `json:"errors"`
}

// Orchestrator runs the reconciliation algorithm. It holds no state across
// passes; all durable bookkeeping lives in the mapping store.
type Orchestrator struct {
	store  Store
	remote RemoteFactory
	now    func() time.Time
}

func NewOrchestrator(store Store, remote RemoteFactory) *Orchestrator {
	return &Orchestrator{
		store:  store,
		remote: remote,
		now:    time.Now,
	}
}

// SyncPair reconciles one board with one remote task list. Items are
// processed sequentially, unmatched-remote first, then unmatched-local,
// then matched pairs; each create or update is awaited in turn so remote
// rate usage stays predictable and item failures stay isolated.
//
// Repeating the call with no intervening edits is a no-op: mapping rows
// prevent duplicate creation and the timestamp checks find nothing changed.
func (o *Orchestrator) SyncPair(ctx context.Context, boardID, remoteListID, bearerToken string) *SyncResult {
	result := &SyncResult{Success: true, Errors: []string{}}
	remote := o.remote(bearerToken)

	// Bulk loads. A failure here is a pass-level failure: there is nothing
	// to iterate over, so the pass stops before any per-item work.
	cards, err := o.store.ListCards(ctx, boardID)
	if err != nil {
		return failPass(result, fmt.Errorf("load cards for board %s: %w", boardID, err))
	}

	// Completed tasks are included so archived cards still match their
	// remote counterpart instead of showing up as unmatched.
	tasks, err := remote.ListTasks(ctx, remoteListID, true)
	if err != nil {
		return failPass(result, fmt.Errorf("load remote tasks for list %s: %w", remoteListID, err))
	}

	columns, err := o.store.ListColumns(ctx, boardID)
	if err != nil {
		return failPass(result, fmt.Errorf("load columns for board %s: %w", boardID, err))
	}

	cardIDs := make([]string, len(cards))
	cardByID := make(map[string]models.Card, len(cards))
	for i, c := range cards {
		cardIDs[i] = c.ID
		cardByID[c.ID] = c
	}
	taskByID := make(map[string]models.RemoteTask, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}

	mappings, err := o.store.ListMappings(ctx, cardIDs)
	if err != nil {
		return failPass(result, fmt.Errorf("load sync mappings for board %s: %w", boardID, err))
	}

	mappingByCardID := make(map[string]models.SyncMapping, len(mappings))
	mappingByTaskID := make(map[string]models.SyncMapping, len(mappings))
	for _, m := range mappings {
		mappingByCardID[m.CardID] = m
		mappingByTaskID[m.RemoteTaskID] = m
	}

	// Unmatched remote tasks become new local cards in the board's first
	// column by position.
	var landingColumn string
	if len(columns) > 0 {
		landingColumn = columns[0].ID
	}

	for _, task := range tasks {
		if _, ok := mappingByTaskID[task.ID]; ok {
			continue
		}
		if landingColumn == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("no columns found for board %s, cannot import task %s", boardID, task.ID))
			continue
		}
		if err := o.importTask(ctx, boardID, remoteListID, landingColumn, task); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("create card from task %s: %v", task.ID, err))
			continue
		}
		result.CardsCreated++
	}

	// Unmatched local cards become new remote tasks.
	for _, card := range cards {
		if _, ok := mappingByCardID[card.ID]; ok {
			continue
		}
		if err := o.exportCard(ctx, remote, remoteListID, card); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("create task from card %s: %v", card.ID, err))
			continue
		}
		result.TasksCreated++
	}

	// Matched pairs. A pair whose card or task has disappeared is skipped:
	// deletion propagation is not part of this algorithm, the mapping row
	// simply goes stale.
	for _, m := range mappings {
		if !m.SyncEnabled {
			continue
		}
		card, haveCard := cardByID[m.CardID]
		task, haveTask := taskByID[m.RemoteTaskID]
		if !haveCard || !haveTask {
			continue
		}
		if err := o.syncMatched(ctx, remote, remoteListID, m, card, task, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("sync card %s: %v", m.CardID, err))
		}
	}

	zap.L().Info("Sync pass finished",
		zap.String("boardID", boardID),
		zap.String("remoteListID", remoteListID),
		zap.Int("cardsCreated", result.CardsCreated),
		zap.Int("cardsUpdated", result.CardsUpdated),
		zap.Int("tasksCreated", result.TasksCreated),
		zap.Int("tasksUpdated", result.TasksUpdated),
		zap.Int("conflicts", result.Conflicts),
		zap.Int("errors", len(result.Errors)))

	return result
}

// SyncAllMappedBoards runs SyncPair for every sync-enabled board↔list
// mapping owned by the principal, sequentially. One board's failure is
// visible in its own result and never aborts the others.
func (o *Orchestrator) SyncAllMappedBoards(ctx context.Context, principalID, bearerToken string) (map[string]*SyncResult, error) {
	mappings, err := o.store.ListEnabledListMappings(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("load list mappings for principal %s: %w", principalID, err)
	}

	results := make(map[string]*SyncResult, len(mappings))
	for _, m := range mappings {
		results[m.BoardID] = o.SyncPair(ctx, m.BoardID, m.RemoteListID, bearerToken)
	}
	return results, nil
}

func (o *Orchestrator) importTask(ctx context.Context, boardID, remoteListID, columnID string, task models.RemoteTask) error {
	fields := ToLocal(task, columnID, 0)
	card, err := o.store.InsertCard(ctx, boardID, fields)
	if err != nil {
		return err
	}

	return o.store.InsertMapping(ctx, &models.SyncMapping{
		CardID:              card.ID,
		RemoteTaskID:        task.ID,
		RemoteListID:        remoteListID,
		LastSyncedAt:        o.now(),
		LastRemoteUpdatedAt: task.Updated,
		LastLocalUpdatedAt:  card.UpdatedAt,
		SyncStatus:          models.SyncStatusSynced,
		SyncEnabled:         true,
	})
}

func (o *Orchestrator) exportCard(ctx context.Context, remote RemoteTasks, remoteListID string, card models.Card) error {
	task, err := remote.CreateTask(ctx, remoteListID, ToRemote(card))
	if err != nil {
		return err
	}

	return o.store.InsertMapping(ctx, &models.SyncMapping{
		CardID:              card.ID,
		RemoteTaskID:        task.ID,
		RemoteListID:        remoteListID,
		LastSyncedAt:        o.now(),
		LastRemoteUpdatedAt: task.Updated,
		LastLocalUpdatedAt:  card.UpdatedAt,
		SyncStatus:          models.SyncStatusSynced,
		SyncEnabled:         true,
	})
}

func (o *Orchestrator) syncMatched(ctx context.Context, remote RemoteTasks, remoteListID string, m models.SyncMapping, card models.Card, task models.RemoteTask, result *SyncResult) error {
	decision := Decide(m.LastSyncedAt, task.Updated, card.UpdatedAt)
	if decision.Winner == SideNone {
		return nil
	}

	if decision.Conflict {
		result.Conflicts++

		// The audit entry is written before the overwrite so the trail
		// stays reconstructable even if the write that follows fails.
		if err := o.logConflict(ctx, m, card, task, decision.Winner); err != nil {
			return fmt.Errorf("log conflict: %w", err)
		}

		zap.L().Warn("Sync conflict resolved",
			zap.String("cardID", card.ID),
			zap.String("remoteTaskID", task.ID),
			zap.String("winner", decision.Winner.String()))
	}

	update := MappingUpdate{
		LastRemoteUpdatedAt: task.Updated,
		LastLocalUpdatedAt:  card.UpdatedAt,
		SyncStatus:          models.SyncStatusSynced,
	}

	switch decision.Winner {
	case SideRemote:
		// Column and position are board layout, not remote data; the
		// overwrite keeps the card where it is.
		updated, err := o.store.UpdateCard(ctx, card.ID, ToLocal(task, card.ColumnID, card.Position))
		if err != nil {
			return err
		}
		update.LastLocalUpdatedAt = updated.UpdatedAt
		result.CardsUpdated++
	case SideLocal:
		updated, err := remote.UpdateTask(ctx, remoteListID, task.ID, ToRemote(card))
		if err != nil {
			return err
		}
		update.LastRemoteUpdatedAt = updated.Updated
		result.TasksUpdated++
	}

	update.LastSyncedAt = o.now()
	return o.store.UpdateMapping(ctx, m.ID, update)
}

func (o *Orchestrator) logConflict(ctx context.Context, m models.SyncMapping, card models.Card, task models.RemoteTask, winner Side) error {
	localData, err := json.Marshal(card)
	if err != nil {
		return err
	}
	remoteData, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return o.store.InsertAuditEntry(ctx, &models.ConflictAuditEntry{
		CardID:       card.ID,
		MappingID:    m.ID,
		EventType:    "sync_conflict",
		RemoteTaskID: task.ID,
		LocalData:    string(localData),
		RemoteData:   string(remoteData),
		Resolution:   fmt.Sprintf("last-write-wins: %s", winner),
	})
}

func failPass(result *SyncResult, err error) *SyncResult {
	zap.L().Error("Sync pass aborted", zap.Error(err))
	result.Success = false
	result.Errors = append(result.Errors, err.Error())
	return result
}
