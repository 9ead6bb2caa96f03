package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lyric-companion/backend/internal/files"
	"github.com/lyric-companion/backend/internal/model"
)

// maxFileBody caps a PUT body.
const maxFileBody = 16 << 20

// FileHandler serves one file store under a route prefix such as /content.
type FileHandler struct {
	store  *files.Store
	prefix string
}

// NewFileHandler creates a FileHandler for store mounted at prefix.
func NewFileHandler(store *files.Store, prefix string) *FileHandler {
	return &FileHandler{store: store, prefix: prefix}
}

// List handles GET <prefix> - every file's contents keyed by name.
func (h *FileHandler) List(c *gin.Context) {
	contents, err := h.store.List()
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list files: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, contents)
}

// Get handles GET <prefix>/:filename.
func (h *FileHandler) Get(c *gin.Context) {
	filename := c.Param("filename")

	contents, err := h.store.Get(filename)
	if err != nil {
		h.sendFileError(c, filename, err)
		return
	}
	c.String(http.StatusOK, "%s", contents)
}

// Put handles PUT <prefix>/:filename - overwrites an existing file.
func (h *FileHandler) Put(c *gin.Context) {
	filename := c.Param("filename")

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxFileBody))
	if err != nil {
		sendError(c, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Failed to read request body: "+err.Error())
		return
	}

	if err := h.store.Put(filename, body); err != nil {
		h.sendFileError(c, filename, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FileHandler) sendFileError(c *gin.Context, filename string, err error) {
	switch {
	case errors.Is(err, model.ErrFileNotFound):
		sendError(c, http.StatusNotFound, "FILE_NOT_FOUND", "File "+filename+" not found")
	case errors.Is(err, model.ErrInvalidFilename):
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid filename")
	default:
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to access file: "+err.Error())
	}
}

// RegisterRoutes registers the file routes on a Gin router group.
func (h *FileHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(h.prefix)
	{
		group.GET("", h.List)
		group.GET("/:filename", h.Get)
		group.PUT("/:filename", h.Put)
	}
}
