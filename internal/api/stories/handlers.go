// Package stories implements HTTP handlers for the AI story mode: photo
// analysis, narrative segment generation, and the photo archive. Every model
// call is made with the signed-in user's own decrypted API key.
package stories

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wandertale/wandertale/internal/db/models"
	"github.com/wandertale/wandertale/internal/db/repositories"
	"github.com/wandertale/wandertale/internal/gemini"
	"github.com/wandertale/wandertale/internal/middleware"
	"github.com/wandertale/wandertale/internal/services"
	"github.com/wandertale/wandertale/internal/storage"
	"github.com/wandertale/wandertale/internal/telemetry"
	"github.com/wandertale/wandertale/pkg/checksum"
)

// credentialMissingMessage is shown when a user without a stored (or
// decryptable) API key tries to use the story mode.
const credentialMissingMessage = "Add your Gemini API key in settings before using story mode"

// credentialRejectedMessage is shown when the upstream provider rejects the
// stored key, which means it was revoked or mistyped.
const credentialRejectedMessage = "Your Gemini API key was rejected, please re-enter it in settings"

// photoURLTTL is how long a generated photo download URL stays valid.
const photoURLTTL = 15 * time.Minute

// Handlers handles story-mode endpoints.
type Handlers struct {
	accounts      *services.AccountService
	model         *gemini.Client
	photos        *repositories.PhotoRepository
	store         storage.Storage
	backendName   string
	maxImageBytes int64
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	accounts *services.AccountService,
	model *gemini.Client,
	photos *repositories.PhotoRepository,
	store storage.Storage,
	backendName string,
	maxImageBytes int64,
) *Handlers {
	if maxImageBytes <= 0 {
		maxImageBytes = 10 << 20
	}
	return &Handlers{
		accounts:      accounts,
		model:         model,
		photos:        photos,
		store:         store,
		backendName:   backendName,
		maxImageBytes: maxImageBytes,
	}
}

// credentialFor resolves the caller's decrypted API key, writing the error
// response itself when the key is unavailable. The bool reports success.
func (h *Handlers) credentialFor(c *gin.Context) (string, string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return "", "", false
	}

	key, err := h.accounts.DecryptedCredential(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrCredentialUnavailable) {
			c.JSON(http.StatusBadRequest, gin.H{"error": credentialMissingMessage})
			return "", "", false
		}
		slog.Error("failed to resolve credential", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve API key"})
		return "", "", false
	}

	return userID, key, true
}

// Analyze accepts a multipart photo upload, runs the vision analysis, and
// archives safe photos together with their analysis.
// POST /api/v1/stories/analyze
func (h *Handlers) Analyze(c *gin.Context) {
	userID, key, ok := h.credentialFor(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "An image file is required (multipart field 'image')"})
		return
	}
	if fileHeader.Size > h.maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("Image exceeds the %d byte limit", h.maxImageBytes),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded image"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded image"})
		return
	}
	if int64(len(imageData)) > h.maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("Image exceeds the %d byte limit", h.maxImageBytes),
		})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(imageData)
	}
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file is not an image"})
		return
	}

	start := time.Now()
	analysis, err := h.model.AnalyzePhoto(c.Request.Context(), key, imageData, contentType)
	telemetry.GeminiRequestDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.GeminiRequestsTotal.WithLabelValues("analyze", outcomeLabel(err)).Inc()
		h.writeModelError(c, err, "Photo analysis failed")
		return
	}
	telemetry.GeminiRequestsTotal.WithLabelValues("analyze", "ok").Inc()

	if analysis.Safety == "unsafe" {
		c.JSON(http.StatusOK, gin.H{
			"safe":   false,
			"reason": "The photo was flagged by the safety check and cannot be used in a story",
		})
		return
	}

	photo, err := h.archivePhoto(c, userID, imageData, contentType, fileHeader.Filename, analysis)
	if err != nil {
		// The analysis succeeded; losing the archive copy should not hide the
		// result from the user.
		slog.Error("failed to archive photo", "error", err, "user_id", userID)
		c.JSON(http.StatusOK, gin.H{"safe": true, "analysis": analysis})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"safe":     true,
		"photo_id": photo.ID,
		"analysis": analysis,
	})
}

// archivePhoto uploads the image bytes and records the photo row. Re-uploads
// of an image the user already archived return the existing row instead of
// storing a second copy.
func (h *Handlers) archivePhoto(c *gin.Context, userID string, imageData []byte, contentType, filename string, analysis *gemini.PhotoAnalysis) (*models.Photo, error) {
	sum, err := checksum.CalculateSHA256(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to hash image: %w", err)
	}
	existing, err := h.photos.FindByChecksum(c.Request.Context(), userID, sum)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate upload: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	ext := path.Ext(filename)
	storagePath := fmt.Sprintf("photos/%s/%s%s", userID, uuid.New().String(), ext)

	result, err := h.store.Upload(c.Request.Context(), storagePath, bytes.NewReader(imageData), int64(len(imageData)))
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}

	photo := &models.Photo{
		UserID:         userID,
		StorageBackend: h.backendName,
		StoragePath:    result.Path,
		ContentType:    contentType,
		SizeBytes:      result.Size,
		Checksum:       result.Checksum,
		Analysis:       analysisJSON,
	}
	if err := h.photos.CreatePhoto(c.Request.Context(), photo); err != nil {
		return nil, fmt.Errorf("failed to record photo: %w", err)
	}

	telemetry.PhotoUploadsTotal.WithLabelValues(h.backendName).Inc()
	return photo, nil
}

// segmentMetadata is the analyze result echoed back by the client when it
// asks for the next segment.
type segmentMetadata struct {
	Subject   string   `json:"subject" binding:"required"`
	Sentiment string   `json:"sentiment"`
	Lighting  string   `json:"lighting"`
	Labels    []string `json:"labels"`
}

type generateRequest struct {
	Metadata        *segmentMetadata `json:"metadata" binding:"required"`
	Tone            string           `json:"tone"`
	PreviousContext string           `json:"previous_context"`
}

// Generate produces the next narrative segment from a photo's analysis.
// POST /api/v1/stories/generate
func (h *Handlers) Generate(c *gin.Context) {
	_, key, ok := h.credentialFor(c)
	if !ok {
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No metadata provided"})
		return
	}

	start := time.Now()
	segment, err := h.model.GenerateSegment(c.Request.Context(), key, gemini.SegmentRequest{
		Metadata: gemini.SegmentMetadata{
			Subject:   req.Metadata.Subject,
			Sentiment: req.Metadata.Sentiment,
			Lighting:  req.Metadata.Lighting,
			Labels:    req.Metadata.Labels,
		},
		Tone:            req.Tone,
		PreviousContext: req.PreviousContext,
	})
	telemetry.GeminiRequestDuration.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.GeminiRequestsTotal.WithLabelValues("generate", outcomeLabel(err)).Inc()
		h.writeModelError(c, err, "Story generation failed")
		return
	}
	telemetry.GeminiRequestsTotal.WithLabelValues("generate", "ok").Inc()
	telemetry.StorySegmentsTotal.WithLabelValues("model").Inc()

	c.JSON(http.StatusOK, gin.H{"segment": segment})
}

// writeModelError maps an upstream model error onto an HTTP response. A
// rejected key is the user's problem to fix; everything else is a gateway
// failure.
func (h *Handlers) writeModelError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, gemini.ErrCredentialRejected) {
		c.JSON(http.StatusBadRequest, gin.H{"error": credentialRejectedMessage})
		return
	}
	slog.Error("model call failed", "error", err)
	c.JSON(http.StatusBadGateway, gin.H{"error": fallback})
}

func outcomeLabel(err error) string {
	if errors.Is(err, gemini.ErrCredentialRejected) {
		return "rejected_key"
	}
	return "error"
}

type photoResponse struct {
	ID          string          `json:"id"`
	ContentType string          `json:"content_type"`
	SizeBytes   int64           `json:"size_bytes"`
	Checksum    string          `json:"checksum"`
	Analysis    json.RawMessage `json:"analysis,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

func toPhotoResponse(p *models.Photo) photoResponse {
	return photoResponse{
		ID:          p.ID,
		ContentType: p.ContentType,
		SizeBytes:   p.SizeBytes,
		Checksum:    p.Checksum,
		Analysis:    p.Analysis,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListPhotos returns the caller's archived photos, newest first.
// GET /api/v1/photos
func (h *Handlers) ListPhotos(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	limit, offset := paginationParams(c)
	photos, err := h.photos.ListPhotosByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		slog.Error("failed to list photos", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list photos"})
		return
	}

	out := make([]photoResponse, 0, len(photos))
	for _, p := range photos {
		out = append(out, toPhotoResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"photos": out})
}

// paginationParams reads limit/offset query parameters with sane bounds.
func paginationParams(c *gin.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// PhotoURL returns a time-limited download URL for one of the caller's photos.
// GET /api/v1/photos/:id/url
func (h *Handlers) PhotoURL(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	photo, err := h.photos.GetPhotoByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("failed to load photo", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load photo"})
		return
	}
	// A photo owned by someone else reads the same as a missing one.
	if photo == nil || photo.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return
	}

	url, err := h.store.GetURL(c.Request.Context(), photo.StoragePath, photoURLTTL)
	if err != nil {
		slog.Error("failed to generate photo URL", "error", err, "photo_id", photo.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate download URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"expires_in": int(photoURLTTL.Seconds()),
	})
}

// DeletePhoto removes one of the caller's photos from the archive.
// DELETE /api/v1/photos/:id
func (h *Handlers) DeletePhoto(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	photo, err := h.photos.GetPhotoByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("failed to load photo", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load photo"})
		return
	}
	// A photo owned by someone else reads the same as a missing one.
	if photo == nil || photo.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return
	}

	if err := h.photos.DeletePhoto(c.Request.Context(), userID, photo.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
			return
		}
		slog.Error("failed to delete photo", "error", err, "photo_id", photo.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete photo"})
		return
	}

	// The row is gone; orphaned bytes in storage are harmless, so a failed
	// blob delete only gets logged.
	if err := h.store.Delete(c.Request.Context(), photo.StoragePath); err != nil {
		slog.Warn("failed to delete photo bytes", "error", err, "path", photo.StoragePath)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Photo deleted"})
}
