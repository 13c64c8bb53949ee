package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wandertale/wandertale/internal/db/models"
)

// PhotoRepository handles photo database operations. It uses sqlx so photo
// rows, which carry a JSONB analysis column, map directly onto the model
// struct without hand-written Scan lists.
type PhotoRepository struct {
	db *sqlx.DB
}

// NewPhotoRepository creates a new PhotoRepository from an existing *sql.DB
func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: sqlx.NewDb(db, "postgres")}
}

// CreatePhoto inserts a new photo record
func (r *PhotoRepository) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	photo.ID = uuid.New().String()
	photo.CreatedAt = time.Now()

	query := `
		INSERT INTO photos (id, user_id, storage_backend, storage_path, content_type, size_bytes, checksum, analysis, created_at)
		VALUES (:id, :user_id, :storage_backend, :storage_path, :content_type, :size_bytes, :checksum, :analysis, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, photo)
	return err
}

// GetPhotoByID retrieves a photo by ID. Returns (nil, nil) when no row matches.
func (r *PhotoRepository) GetPhotoByID(ctx context.Context, photoID string) (*models.Photo, error) {
	query := `
		SELECT id, user_id, storage_backend, storage_path, content_type, size_bytes, checksum, analysis, created_at
		FROM photos
		WHERE id = $1
	`

	photo := &models.Photo{}
	err := r.db.GetContext(ctx, photo, query, photoID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// GetPhotoByPath retrieves a user's photo by its storage path. Returns
// (nil, nil) when no row matches; photos belonging to other users do not
// match.
func (r *PhotoRepository) GetPhotoByPath(ctx context.Context, userID, storagePath string) (*models.Photo, error) {
	query := `
		SELECT id, user_id, storage_backend, storage_path, content_type, size_bytes, checksum, analysis, created_at
		FROM photos
		WHERE user_id = $1 AND storage_path = $2
	`

	photo := &models.Photo{}
	err := r.db.GetContext(ctx, photo, query, userID, storagePath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// ListPhotosByUser retrieves a user's photos, newest first
func (r *PhotoRepository) ListPhotosByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Photo, error) {
	query := `
		SELECT id, user_id, storage_backend, storage_path, content_type, size_bytes, checksum, analysis, created_at
		FROM photos
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	photos := make([]*models.Photo, 0)
	err := r.db.SelectContext(ctx, &photos, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return photos, nil
}

// DeletePhoto deletes a user's photo record. Returns sql.ErrNoRows when the
// photo does not exist or belongs to another user.
func (r *PhotoRepository) DeletePhoto(ctx context.Context, userID, photoID string) error {
	query := `DELETE FROM photos WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, photoID, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// FindByChecksum returns a user's photo with a matching checksum, used to
// detect duplicate uploads. Returns (nil, nil) when no row matches.
func (r *PhotoRepository) FindByChecksum(ctx context.Context, userID, checksum string) (*models.Photo, error) {
	query := `
		SELECT id, user_id, storage_backend, storage_path, content_type, size_bytes, checksum, analysis, created_at
		FROM photos
		WHERE user_id = $1 AND checksum = $2
		LIMIT 1
	`

	photo := &models.Photo{}
	err := r.db.GetContext(ctx, photo, query, userID, checksum)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}
