// serve.go handles direct file serving of archived photos from local storage backends.
package stories

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wandertale/wandertale/internal/middleware"
)

// ServeFile streams the bytes of one of the caller's archived photos.
// Implements: GET /api/v1/photos/files/*filepath
// Only used when local storage has ServeDirectly: true.
//
// The path must match a photo row owned by the caller; anything else,
// including another user's photo or a path escaping the storage root, reads
// as not found.
func (h *Handlers) ServeFile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	filePath := strings.TrimPrefix(c.Param("filepath"), "/")
	if filePath == "" || !filepath.IsLocal(filePath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	photo, err := h.photos.GetPhotoByPath(c.Request.Context(), userID, filePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up photo"})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	metadata, err := h.store.GetMetadata(c.Request.Context(), filePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get file metadata"})
		return
	}

	reader, err := h.store.Download(c.Request.Context(), filePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer reader.Close()

	contentType := photo.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("X-Checksum-SHA256", metadata.Checksum)
	c.DataFromReader(http.StatusOK, metadata.Size, contentType, reader, nil)
}
