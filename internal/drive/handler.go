package drive

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

// Folders is the browsing side of Drive the handler needs.
type Folders interface {
	Source
	FindFolderByPath(ctx context.Context, path string) (string, error)
}

type Handler struct {
	folders  Folders
	importer *Importer
}

func NewHandler(folders Folders, importer *Importer) *Handler {
	return &Handler{
		folders:  folders,
		importer: importer,
	}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/drive/files", h.ListFiles)
	group.POST("/drive/import", h.Import)
}

func (h *Handler) ListFiles(c *gin.Context) {
	folderID := c.Query("folderId")

	if folderPath := strings.TrimSpace(c.Query("path")); folderPath != "" {
		var err error
		folderID, err = h.folders.FindFolderByPath(c.Request.Context(), folderPath)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
	}

	files, err := h.folders.ListFiles(c.Request.Context(), folderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if files == nil {
		files = []*File{}
	}

	c.JSON(http.StatusOK, gin.H{"data": files})
}

type importRequest struct {
	FolderID   string `json:"folder_id"`
	ScenarioID string `json:"scenario_id" binding:"required"`
}

func (h *Handler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.importer.ImportFolder(c.Request.Context(), req.FolderID, req.ScenarioID)
	if err != nil {
		status := http.StatusInternalServerError
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
