package model

import "time"

// File is an uploaded file owned by a single user. ShareID is the opaque
// public token used for unauthenticated download lookups.
type File struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	StoragePath      string    `db:"storage_path" json:"storage_path"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	MimeType         string    `db:"mime_type" json:"mime_type"`
	ShareID          string    `db:"share_id" json:"share_id"`
	DownloadCount    int       `db:"download_count" json:"download_count"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
