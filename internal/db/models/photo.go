package models

import (
	"encoding/json"
	"time"
)

// Photo represents an uploaded travel photo and the stored result
// of its AI analysis. Struct tags are sqlx column mappings.
type Photo struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	StorageBackend string          `db:"storage_backend"`
	StoragePath    string          `db:"storage_path"`
	ContentType    string          `db:"content_type"`
	SizeBytes      int64           `db:"size_bytes"`
	Checksum       string          `db:"checksum"`
	Analysis       json.RawMessage `db:"analysis"`
	CreatedAt      time.Time       `db:"created_at"`
}
