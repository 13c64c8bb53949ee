// Package legacy implements the v1 template-based story mode. It is fully
// stateless: the server picks from fixed template banks and the client carries
// the set of already-used template indices between requests.
package legacy

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wandertale/wandertale/internal/narrative"
	"github.com/wandertale/wandertale/internal/telemetry"
)

// Handlers handles the legacy story endpoints.
type Handlers struct {
	gen *narrative.Generator
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(gen *narrative.Generator) *Handlers {
	return &Handlers{gen: gen}
}

// Gallery returns the fixed image set the legacy mode builds stories from.
// GET /api/v1/legacy/gallery
func (h *Handlers) Gallery(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"images": narrative.Gallery()})
}

type segmentRequest struct {
	Category         string `json:"category"`
	Stage            string `json:"stage" binding:"required"`
	ImageDescription string `json:"image_description" binding:"required"`
	// UsedIndices lists template indices already shown to this client for
	// the same category and stage.
	UsedIndices []int `json:"used_indices"`
	// Tags optionally derive the category when none is given explicitly.
	Tags []string `json:"tags"`
}

// Segment renders one story segment from the template bank.
// POST /api/v1/legacy/segment
func (h *Handlers) Segment(c *gin.Context) {
	var req segmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stage and image_description are required"})
		return
	}

	category := narrative.Category(req.Category)
	if req.Category == "" {
		category = narrative.CategoryForTags(req.Tags)
	}

	segment, err := h.gen.Generate(category, narrative.Phase(req.Stage), req.ImageDescription, req.UsedIndices)
	if err != nil {
		switch {
		case errors.Is(err, narrative.ErrUnknownCategory):
			c.JSON(http.StatusBadRequest, gin.H{"error": "category must be 'adventure' or 'mystery'"})
		case errors.Is(err, narrative.ErrUnknownPhase):
			c.JSON(http.StatusBadRequest, gin.H{"error": "stage must be 'start', 'middle' or 'end'"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate segment"})
		}
		return
	}

	telemetry.StorySegmentsTotal.WithLabelValues("template").Inc()

	c.JSON(http.StatusOK, segment)
}
