package dto

import (
	"time"

	"app/internal/model"
)

// FileResponse describes one of the caller's files, including its share link.
type FileResponse struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	ShareID          string    `json:"share_id"`
	ShareURL         string    `json:"share_url"`
	DownloadCount    int       `json:"download_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewFileResponse maps a file record to the wire format.
func NewFileResponse(f *model.File, shareURL string) FileResponse {
	return FileResponse{
		ID:               f.ID,
		OriginalFilename: f.OriginalFilename,
		FileSize:         f.FileSize,
		MimeType:         f.MimeType,
		ShareID:          f.ShareID,
		ShareURL:         shareURL,
		DownloadCount:    f.DownloadCount,
		CreatedAt:        f.CreatedAt,
	}
}

// ShareResponse is the public metadata shown on the download page. It never
// exposes the owner or the storage key.
type ShareResponse struct {
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewShareResponse maps a file record to its public metadata.
func NewShareResponse(f *model.File) ShareResponse {
	return ShareResponse{
		OriginalFilename: f.OriginalFilename,
		FileSize:         f.FileSize,
		MimeType:         f.MimeType,
		CreatedAt:        f.CreatedAt,
	}
}

// DownloadURLResponse carries a presigned download URL and its validity
// window in seconds.
type DownloadURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}
