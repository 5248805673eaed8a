package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FileRepository defines methods for accessing file records.
type FileRepository interface {
	CreateFile(ctx context.Context, f *model.File) (*model.File, error)
	GetFilesByUserID(ctx context.Context, userID string, limit, offset int) ([]model.File, error)
	GetFileByID(ctx context.Context, id string) (*model.File, error)
	GetFileByShareID(ctx context.Context, shareID string) (*model.File, error)
	IncrementDownloadCount(ctx context.Context, id string) error
	DeleteFile(ctx context.Context, id string) error
}

type fileRepo struct {
	pool *pgxpool.Pool
}

// NewFileRepo creates a new FileRepository.
func NewFileRepo(pool *pgxpool.Pool) FileRepository {
	return &fileRepo{pool: pool}
}

const fileColumns = `id, user_id, original_filename, storage_path, file_size, mime_type, share_id, download_count, created_at`

func scanFile(row pgx.Row) (*model.File, error) {
	var f model.File
	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.OriginalFilename,
		&f.StoragePath,
		&f.FileSize,
		&f.MimeType,
		&f.ShareID,
		&f.DownloadCount,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFile inserts a file record and returns the stored row.
func (r *fileRepo) CreateFile(ctx context.Context, f *model.File) (*model.File, error) {
	q := fmt.Sprintf(`
        INSERT INTO files (id, user_id, original_filename, storage_path, file_size, mime_type, share_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING %s
    `, fileColumns)
	stored, err := scanFile(r.pool.QueryRow(ctx, q,
		f.ID,
		f.UserID,
		f.OriginalFilename,
		f.StoragePath,
		f.FileSize,
		f.MimeType,
		f.ShareID,
	))
	if err != nil {
		return nil, fmt.Errorf("insert file for user %s: %w", f.UserID, err)
	}
	return stored, nil
}

// GetFilesByUserID returns the user's files, newest first, with pagination.
func (r *fileRepo) GetFilesByUserID(ctx context.Context, userID string, limit, offset int) ([]model.File, error) {
	q := fmt.Sprintf(`
        SELECT %s
        FROM files
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `, fileColumns)
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query files for user %s: %w", userID, err)
	}
	defer rows.Close()

	var files []model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return files, nil
}

// GetFileByID returns a file by primary key, or nil if none exists.
func (r *fileRepo) GetFileByID(ctx context.Context, id string) (*model.File, error) {
	q := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)
	f, err := scanFile(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch file %s: %w", id, err)
	}
	return f, nil
}

// GetFileByShareID resolves a public share token, or nil if none exists.
func (r *fileRepo) GetFileByShareID(ctx context.Context, shareID string) (*model.File, error) {
	q := fmt.Sprintf(`SELECT %s FROM files WHERE share_id = $1`, fileColumns)
	f, err := scanFile(r.pool.QueryRow(ctx, q, shareID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch file by share id: %w", err)
	}
	return f, nil
}

// IncrementDownloadCount bumps the download counter for a file.
func (r *fileRepo) IncrementDownloadCount(ctx context.Context, id string) error {
	const q = `UPDATE files SET download_count = download_count + 1 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("increment download count for file %s: %w", id, err)
	}
	return nil
}

// DeleteFile removes a file record.
func (r *fileRepo) DeleteFile(ctx context.Context, id string) error {
	const q = `DELETE FROM files WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("delete file %s: %w", id, err)
	}
	return nil
}
