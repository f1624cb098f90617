package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/flowfox/tasksync/internal/models"
	"github.com/flowfox/tasksync/syncer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SyncEngine is the slice of the orchestrator the handlers call.
type SyncEngine interface {
	SyncPair(ctx context.Context, boardID, remoteListID, bearerToken string) *syncer.SyncResult
	SyncAllMappedBoards(ctx context.Context, principalID, bearerToken string) (map[string]*syncer.SyncResult, error)
}

type Handler struct {
	DB     *gorm.DB
	Engine SyncEngine
	Remote syncer.RemoteFactory
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListTaskListsHandler returns the caller's remote task lists, so the UI
// can offer them when a board mapping is being set up.
func (h *Handler) ListTaskListsHandler(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		return
	}

	lists, err := h.Remote(token).ListTaskLists(c.Request.Context())
	if err != nil {
		zap.L().Error("Failed to fetch task lists", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch remote task lists"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"taskLists": lists})
}

// SyncBoardHandler triggers one sync pass for the board's mapped remote
// list. The pass itself never fails per item; an unsuccessful result means
// the initial loads failed.
func (h *Handler) SyncBoardHandler(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		return
	}
	principalID, ok := principal(c)
	if !ok {
		return
	}

	boardID := c.Param("boardId")

	var mapping models.ListMapping
	err := h.DB.WithContext(c.Request.Context()).
		Where("board_id = ? AND principal_id = ? AND sync_enabled = ?", boardID, principalID, true).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No remote task list mapped to this board"})
		return
	}
	if err != nil {
		zap.L().Error("Failed to load board mapping", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load board mapping"})
		return
	}

	result := h.Engine.SyncPair(c.Request.Context(), boardID, mapping.RemoteListID, token)
	if !result.Success {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Sync failed", "result": result})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// SyncAllHandler triggers a sync pass for every board the principal has
// mapped, returning results keyed by board id.
func (h *Handler) SyncAllHandler(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		return
	}
	principalID, ok := principal(c)
	if !ok {
		return
	}

	results, err := h.Engine.SyncAllMappedBoards(c.Request.Context(), principalID, token)
	if err != nil {
		zap.L().Error("Failed to sync mapped boards", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sync failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) GetBoardMappingHandler(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}

	var mapping models.ListMapping
	err := h.DB.WithContext(c.Request.Context()).
		Where("board_id = ? AND principal_id = ?", c.Param("boardId"), principalID).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Board is not mapped"})
		return
	}
	if err != nil {
		zap.L().Error("Failed to load board mapping", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load board mapping"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"mapping": mapping})
}

type upsertMappingRequest struct {
	RemoteListID string `json:"remoteListId" binding:"required"`
	SyncEnabled  *bool  `json:"syncEnabled"`
}

// UpsertBoardMappingHandler creates or replaces the board's mapping to a
// remote task list for the acting principal.
func (h *Handler) UpsertBoardMappingHandler(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}

	var req upsertMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	enabled := true
	if req.SyncEnabled != nil {
		enabled = *req.SyncEnabled
	}

	boardID := c.Param("boardId")
	mapping := models.ListMapping{
		BoardID:      boardID,
		RemoteListID: req.RemoteListID,
		PrincipalID:  principalID,
		SyncEnabled:  enabled,
	}

	db := h.DB.WithContext(c.Request.Context())
	var existing models.ListMapping
	err := db.Where("board_id = ? AND principal_id = ?", boardID, principalID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = db.Create(&mapping).Error
	case err == nil:
		mapping.ID = existing.ID
		err = db.Model(&existing).Updates(map[string]any{
			"remote_list_id": req.RemoteListID,
			"sync_enabled":   enabled,
		}).Error
	}
	if err != nil {
		zap.L().Error("Failed to save board mapping", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save board mapping"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"mapping": mapping})
}

// bearerToken pulls the remote-API token out of the Authorization header.
// Obtaining and refreshing the token is the caller's problem.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
		return "", false
	}
	return token, true
}

// principal reads the acting principal from the request. Identity is
// always explicit; there is no ambient default principal anywhere in the
// service.
func principal(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Principal-ID")
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing X-Principal-ID header"})
		return "", false
	}
	return id, true
}
