package stories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/wandertale/wandertale/internal/auth"
	"github.com/wandertale/wandertale/internal/config"
	"github.com/wandertale/wandertale/internal/crypto"
	"github.com/wandertale/wandertale/internal/db/repositories"
	"github.com/wandertale/wandertale/internal/gemini"
	"github.com/wandertale/wandertale/internal/middleware"
	"github.com/wandertale/wandertale/internal/services"
	"github.com/wandertale/wandertale/internal/storage/local"
)

const (
	testCipherKey = "0123456789abcdef0123456789abcdef"
	testJWTSecret = "test-secret-at-least-32-bytes-long!!"
	testAPIKey    = "AIzaSy-test-key"
)

var userCols = []string{
	"id", "email", "password_hash", "encrypted_credential",
	"encryption_iv", "oidc_sub", "created_at", "updated_at",
}

// storiesFixture bundles everything a handler test needs.
type storiesFixture struct {
	mock   sqlmock.Sqlmock
	cipher *crypto.CredentialCipher
	tokens *auth.TokenAuthenticator
	router *gin.Engine
	store  *local.LocalStorage
}

// newStoriesRouter wires the handlers against sqlmock, a temp-dir local
// storage backend, and a stub model server.
func newStoriesRouter(t *testing.T, modelHandler http.HandlerFunc) *storiesFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cipher, err := crypto.NewCredentialCipher([]byte(testCipherKey))
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}
	tokens, err := auth.NewTokenAuthenticator([]byte(testJWTSecret), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenAuthenticator: %v", err)
	}

	srv := httptest.NewServer(modelHandler)
	t.Cleanup(srv.Close)
	model := gemini.NewClient(srv.URL, "gemini-flash-latest", 5*time.Second)

	store, err := local.New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "http://localhost:8080")
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}

	svc := services.NewAccountService(repositories.NewUserRepository(db), cipher, tokens)
	h := NewHandlers(svc, model, repositories.NewPhotoRepository(db), store, "local", 1<<20)

	r := gin.New()
	protected := r.Group("", middleware.SessionAuthMiddleware(tokens))
	protected.POST("/stories/analyze", h.Analyze)
	protected.POST("/stories/generate", h.Generate)
	protected.GET("/photos", h.ListPhotos)
	protected.GET("/photos/:id/url", h.PhotoURL)
	protected.DELETE("/photos/:id", h.DeletePhoto)
	protected.GET("/photos/files/*filepath", h.ServeFile)

	return &storiesFixture{mock: mock, cipher: cipher, tokens: tokens, router: r, store: store}
}

// expectUserWithKey queues a user row whose stored credential decrypts to
// testAPIKey.
func (f *storiesFixture) expectUserWithKey(t *testing.T) {
	t.Helper()
	ct, iv, err := f.cipher.Seal(testAPIKey)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	f.mock.ExpectQuery("SELECT.*FROM users.*WHERE id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-1", "marco@example.com", nil, ct, iv, nil, time.Now(), time.Now()))
}

// expectUserWithoutKey queues a user row with no stored credential.
func (f *storiesFixture) expectUserWithoutKey() {
	f.mock.ExpectQuery("SELECT.*FROM users.*WHERE id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-1", "marco@example.com", nil, nil, nil, nil, time.Now(), time.Now()))
}

func (f *storiesFixture) bearer(t *testing.T) string {
	t.Helper()
	token, err := f.tokens.Issue("user-1", "marco@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return "Bearer " + token
}

// candidateResponse wraps text in the generateContent response envelope.
func candidateResponse(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]string{{"text": text}},
			},
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

// multipartImage builds a multipart body with one image field.
func multipartImage(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// jpegBytes is a minimal payload that http.DetectContentType reads as image/jpeg.
func jpegBytes() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 64)...)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, w.Body.String())
	}
	return body
}

// ---------------------------------------------------------------------------
// Analyze
// ---------------------------------------------------------------------------

func TestAnalyze_SafePhotoIsArchived(t *testing.T) {
	analysis := `{"subject":"mountain pass","sentiment":"awe","lighting":"golden hour","labels":["mountains"],"safety":"safe"}`
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != testAPIKey {
			t.Errorf("model called with key %q, want %q", got, testAPIKey)
		}
		fmt.Fprint(w, candidateResponse(analysis))
	})

	f.expectUserWithKey(t)
	f.mock.ExpectQuery("SELECT.*FROM photos.*WHERE user_id.*AND checksum").
		WillReturnRows(sqlmock.NewRows(photoCols))
	f.mock.ExpectExec("INSERT INTO photos").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, contentType := multipartImage(t, "image", "pass.jpg", jpegBytes())
	req := httptest.NewRequest(http.MethodPost, "/stories/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}

	resp := decodeBody(t, w)
	if resp["safe"] != true {
		t.Errorf("safe = %v, want true", resp["safe"])
	}
	if resp["photo_id"] == "" || resp["photo_id"] == nil {
		t.Error("response has no photo_id")
	}
	got, _ := resp["analysis"].(map[string]any)
	if got["subject"] != "mountain pass" {
		t.Errorf("analysis.subject = %v", got["subject"])
	}
}

func TestAnalyze_DuplicateUploadReturnsExistingPhoto(t *testing.T) {
	analysis := `{"subject":"mountain pass","sentiment":"awe","lighting":"golden hour","labels":["mountains"],"safety":"safe"}`
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(analysis))
	})

	f.expectUserWithKey(t)
	// The checksum lookup hits; no INSERT INTO photos expectation, so a second
	// archive write would fail the ExpectationsWereMet check below.
	f.mock.ExpectQuery("SELECT.*FROM photos.*WHERE user_id.*AND checksum").
		WillReturnRows(sqlmock.NewRows(photoCols).
			AddRow("photo-7", "user-1", "local", "photos/user-1/seen.jpg", "image/jpeg",
				int64(68), "already-there", []byte(`{}`), time.Now()))

	body, contentType := multipartImage(t, "image", "pass.jpg", jpegBytes())
	req := httptest.NewRequest(http.MethodPost, "/stories/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["photo_id"] != "photo-7" {
		t.Errorf("photo_id = %v, want the existing photo-7", resp["photo_id"])
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestAnalyze_UnsafePhotoIsNotArchived(t *testing.T) {
	analysis := `{"subject":"","sentiment":"","lighting":"","labels":[],"safety":"unsafe"}`
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(analysis))
	})

	f.expectUserWithKey(t)
	// No INSERT INTO photos expectation: archiving an unsafe photo would fail
	// the sqlmock ExpectationsWereMet check below.

	body, contentType := multipartImage(t, "image", "pass.jpg", jpegBytes())
	req := httptest.NewRequest(http.MethodPost, "/stories/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["safe"] != false {
		t.Errorf("safe = %v, want false", resp["safe"])
	}
	if resp["reason"] == "" {
		t.Error("unsafe response has no reason")
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestAnalyze_NoStoredKey(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("model must not be called without a credential")
	})

	f.expectUserWithoutKey()

	body, contentType := multipartImage(t, "image", "pass.jpg", jpegBytes())
	req := httptest.NewRequest(http.MethodPost, "/stories/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400\nbody: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "API key") {
		t.Errorf("error does not mention the API key: %s", w.Body.String())
	}
}

func TestAnalyze_MissingFile(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	f.expectUserWithKey(t)

	req := httptest.NewRequest(http.MethodPost, "/stories/analyze", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAnalyze_NonImageRejected(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("model must not be called for non-image uploads")
	})

	f.expectUserWithKey(t)

	body, contentType := multipartImage(t, "image", "notes.txt", []byte("plain text, definitely not an image"))
	req := httptest.NewRequest(http.MethodPost, "/stories/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400\nbody: %s", w.Code, w.Body.String())
	}
}

func TestAnalyze_RejectedKey(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	f.expectUserWithKey(t)

	body, contentType := multipartImage(t, "image", "pass.jpg", jpegBytes())
	req := httptest.NewRequest(http.MethodPost, "/stories/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400\nbody: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "re-enter") {
		t.Errorf("error does not ask for a new key: %s", w.Body.String())
	}
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	f.expectUserWithKey(t)

	body, contentType := multipartImage(t, "image", "pass.jpg", jpegBytes())
	req := httptest.NewRequest(http.MethodPost, "/stories/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestAnalyze_NoToken(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodPost, "/stories/analyze", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerate_Success(t *testing.T) {
	var promptSeen string
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		promptSeen = string(raw)
		fmt.Fprint(w, candidateResponse("The trail climbed into the clouds."))
	})

	f.expectUserWithKey(t)

	payload := `{
		"metadata": {
			"subject": "a mountain pass at dawn",
			"sentiment": "awe",
			"lighting": "golden hour",
			"labels": ["mountains", "mist"]
		},
		"tone": "adventurous",
		"previous_context": "We left the coast behind."
	}`
	req := httptest.NewRequest(http.MethodPost, "/stories/generate", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["segment"] != "The trail climbed into the clouds." {
		t.Errorf("segment = %v", resp["segment"])
	}

	// The prompt carries each analysis field as its own line, not a flat blob.
	for _, want := range []string{
		"Focus: a mountain pass at dawn",
		"Mood/Atmosphere: awe",
		"Lighting: golden hour",
		"mountains, mist",
		"Journey so far: We left the coast behind.",
	} {
		if !strings.Contains(promptSeen, want) {
			t.Errorf("prompt is missing %q", want)
		}
	}
}

func TestGenerate_MissingMetadata(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	f.expectUserWithKey(t)

	req := httptest.NewRequest(http.MethodPost, "/stories/generate", strings.NewReader(`{"tone":"moody"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "metadata") {
		t.Errorf("error does not mention metadata: %s", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Photo listing and URLs
// ---------------------------------------------------------------------------

var photoCols = []string{
	"id", "user_id", "storage_backend", "storage_path", "content_type",
	"size_bytes", "checksum", "analysis", "created_at",
}

func TestListPhotos(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	f.mock.ExpectQuery("SELECT.*FROM photos.*WHERE user_id").
		WillReturnRows(sqlmock.NewRows(photoCols).
			AddRow("photo-1", "user-1", "local", "photos/user-1/a.jpg", "image/jpeg",
				int64(123), "abc", []byte(`{"subject":"coastline"}`), time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/photos", nil)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	photos, _ := resp["photos"].([]any)
	if len(photos) != 1 {
		t.Fatalf("got %d photos, want 1", len(photos))
	}
	first, _ := photos[0].(map[string]any)
	if first["id"] != "photo-1" {
		t.Errorf("photos[0].id = %v", first["id"])
	}
}

func TestPhotoURL_OtherUsersPhotoIsNotFound(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	f.mock.ExpectQuery("SELECT.*FROM photos.*WHERE id").
		WillReturnRows(sqlmock.NewRows(photoCols).
			AddRow("photo-2", "someone-else", "local", "photos/someone-else/b.jpg", "image/jpeg",
				int64(99), "def", []byte(`{}`), time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/photos/photo-2/url", nil)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestPhotoURL_Missing(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	f.mock.ExpectQuery("SELECT.*FROM photos.*WHERE id").
		WillReturnRows(sqlmock.NewRows(photoCols))

	req := httptest.NewRequest(http.MethodGet, "/photos/ghost/url", nil)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// File serving
// ---------------------------------------------------------------------------

func TestServeFile_OwnedPhoto(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	data := jpegBytes()
	if _, err := f.store.Upload(context.Background(), "photos/user-1/pass.jpg", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	f.mock.ExpectQuery("SELECT.*FROM photos.*WHERE user_id.*AND storage_path").
		WithArgs("user-1", "photos/user-1/pass.jpg").
		WillReturnRows(sqlmock.NewRows(photoCols).
			AddRow("photo-1", "user-1", "local", "photos/user-1/pass.jpg", "image/jpeg",
				int64(len(data)), "abc", []byte(`{}`), time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/photos/files/photos/user-1/pass.jpg", nil)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	if !bytes.Equal(w.Body.Bytes(), data) {
		t.Error("served bytes differ from the uploaded photo")
	}
	if got := w.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", got)
	}
	if got := w.Header().Get("X-Checksum-SHA256"); len(got) != 64 {
		t.Errorf("X-Checksum-SHA256 = %q, want a SHA-256 hex digest", got)
	}
}

func TestServeFile_NoToken(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/photos/files/photos/user-1/pass.jpg", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestServeFile_UnownedPathIsNotFound(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	data := jpegBytes()
	if _, err := f.store.Upload(context.Background(), "photos/user-2/theirs.jpg", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// The ownership lookup is user-scoped, so another user's path matches no row.
	f.mock.ExpectQuery("SELECT.*FROM photos.*WHERE user_id.*AND storage_path").
		WithArgs("user-1", "photos/user-2/theirs.jpg").
		WillReturnRows(sqlmock.NewRows(photoCols))

	req := httptest.NewRequest(http.MethodGet, "/photos/files/photos/user-2/theirs.jpg", nil)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404\nbody: %s", w.Code, w.Body.String())
	}
}

func TestServeFile_TraversalIsNotFound(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	// No photo lookup expectation is queued: a ".." path must be rejected
	// before it reaches the database or the filesystem.
	for _, p := range []string{
		"/photos/files/../server-secret.txt",
		"/photos/files/photos/../../server-secret.txt",
		"/photos/files/..",
	} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		req.Header.Set("Authorization", f.bearer(t))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", p, w.Code)
		}
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Photo deletion
// ---------------------------------------------------------------------------

func TestDeletePhoto(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	data := jpegBytes()
	if _, err := f.store.Upload(context.Background(), "photos/user-1/old.jpg", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	f.mock.ExpectQuery("SELECT.*FROM photos.*WHERE id").
		WithArgs("photo-1").
		WillReturnRows(sqlmock.NewRows(photoCols).
			AddRow("photo-1", "user-1", "local", "photos/user-1/old.jpg", "image/jpeg",
				int64(len(data)), "abc", []byte(`{}`), time.Now()))
	f.mock.ExpectExec("DELETE FROM photos").
		WithArgs("photo-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodDelete, "/photos/photo-1", nil)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	if exists, _ := f.store.Exists(context.Background(), "photos/user-1/old.jpg"); exists {
		t.Error("photo bytes still present in storage after delete")
	}
}

func TestDeletePhoto_OtherUsersPhotoIsNotFound(t *testing.T) {
	f := newStoriesRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	f.mock.ExpectQuery("SELECT.*FROM photos.*WHERE id").
		WithArgs("photo-2").
		WillReturnRows(sqlmock.NewRows(photoCols).
			AddRow("photo-2", "someone-else", "local", "photos/someone-else/b.jpg", "image/jpeg",
				int64(99), "def", []byte(`{}`), time.Now()))

	req := httptest.NewRequest(http.MethodDelete, "/photos/photo-2", nil)
	req.Header.Set("Authorization", f.bearer(t))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	// No DELETE expectation queued; issuing one would fail this check.
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}
