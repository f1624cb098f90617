package database

import (
	"context"
	"fmt"

	"github.com/flowfox/tasksync/internal/models"
	"github.com/flowfox/tasksync/syncer"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm-backed implementation of the persistence contracts the
// sync engine runs against.
type Store struct {
	DB *gorm.DB
}

var _ syncer.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) ListCards(ctx context.Context, boardID string) ([]models.Card, error) {
	var cards []models.Card
	if err := s.DB.WithContext(ctx).Where("board_id = ?", boardID).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

func (s *Store) ListColumns(ctx context.Context, boardID string) ([]models.Column, error) {
	var columns []models.Column
	if err := s.DB.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("position ASC").
		Find(&columns).Error; err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	return columns, nil
}

func (s *Store) InsertCard(ctx context.Context, boardID string, fields syncer.CardFields) (*models.Card, error) {
	card := models.Card{
		BoardID:     boardID,
		ColumnID:    fields.ColumnID,
		Title:       fields.Title,
		Description: fields.Description,
		Status:      fields.Status,
		DueDate:     fields.DueDate,
		Priority:    fields.Priority,
		Position:    fields.Position,
	}
	if err := s.DB.WithContext(ctx).Create(&card).Error; err != nil {
		return nil, fmt.Errorf("failed to insert card: %w", err)
	}
	return &card, nil
}

func (s *Store) UpdateCard(ctx context.Context, cardID string, fields syncer.CardFields) (*models.Card, error) {
	// A map update so emptied fields (cleared description, removed due
	// date) are written through rather than skipped as zero values.
	updates := map[string]any{
		"column_id":   fields.ColumnID,
		"title":       fields.Title,
		"description": fields.Description,
		"status":      fields.Status,
		"due_date":    fields.DueDate,
		"priority":    fields.Priority,
		"position":    fields.Position,
	}
	if err := s.DB.WithContext(ctx).Model(&models.Card{}).Where("id = ?", cardID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update card %s: %w", cardID, err)
	}

	var card models.Card
	if err := s.DB.WithContext(ctx).First(&card, "id = ?", cardID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload card %s: %w", cardID, err)
	}
	return &card, nil
}

func (s *Store) ListMappings(ctx context.Context, cardIDs []string) ([]models.SyncMapping, error) {
	if len(cardIDs) == 0 {
		return nil, nil
	}
	var mappings []models.SyncMapping
	if err := s.DB.WithContext(ctx).Where("card_id IN ?", cardIDs).Find(&mappings).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync mappings: %w", err)
	}
	return mappings, nil
}

// InsertMapping upserts on the (card_id, remote_list_id) unique key, so a
// retried or concurrently racing first-time sync converges on a single row
// instead of failing or duplicating.
func (s *Store) InsertMapping(ctx context.Context, mapping *models.SyncMapping) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "card_id"}, {Name: "remote_list_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"remote_task_id",
			"last_synced_at",
			"last_remote_updated_at",
			"last_local_updated_at",
			"sync_status",
			"updated_at",
		}),
	}).Create(mapping).Error
	if err != nil {
		return fmt.Errorf("failed to insert sync mapping: %w", err)
	}
	return nil
}

func (s *Store) UpdateMapping(ctx context.Context, mappingID string, update syncer.MappingUpdate) error {
	err := s.DB.WithContext(ctx).Model(&models.SyncMapping{}).Where("id = ?", mappingID).Updates(map[string]any{
		"last_synced_at":         update.LastSyncedAt,
		"last_remote_updated_at": update.LastRemoteUpdatedAt,
		"last_local_updated_at":  update.LastLocalUpdatedAt,
		"sync_status":            update.SyncStatus,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update sync mapping %s: %w", mappingID, err)
	}
	return nil
}

func (s *Store) InsertAuditEntry(ctx context.Context, entry *models.ConflictAuditEntry) error {
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListEnabledListMappings(ctx context.Context, principalID string) ([]models.ListMapping, error) {
	var mappings []models.ListMapping
	if err := s.DB.WithContext(ctx).
		Where("principal_id = ? AND sync_enabled = ?", principalID, true).
		Find(&mappings).Error; err != nil {
		return nil, fmt.Errorf("failed to list board mappings: %w", err)
	}
	return mappings, nil
}
