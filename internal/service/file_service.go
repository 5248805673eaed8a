package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrFileNotFound is returned when a file does not exist or the caller does
// not own it.
var ErrFileNotFound = errors.New("file_not_found")

// QuotaExceededError carries the tier-appropriate upgrade message shown when
// a subscriber hits their upload limit.
type QuotaExceededError struct {
	Message string
}

func (e *QuotaExceededError) Error() string { return e.Message }

// FileService defines file upload, listing, sharing and deletion operations.
type FileService interface {
	// Upload stores the file, records its metadata and returns the record
	// with its public share URL. The quota check and increment are atomic.
	Upload(ctx context.Context, userID, filename, mimeType string, size int64, body io.Reader) (*model.File, string, error)
	ListFiles(ctx context.Context, userID string, limit, offset int) ([]model.File, error)
	DeleteFile(ctx context.Context, userID, fileID string) error
	// GetShare resolves a public share token. Returns nil when unknown.
	GetShare(ctx context.Context, shareID string) (*model.File, error)
	// CreateDownloadURL issues a presigned download URL for a share token and
	// bumps the download counter. Returns a nil file when the token is unknown.
	CreateDownloadURL(ctx context.Context, shareID string) (*model.File, string, error)
}

type fileService struct {
	repo            repository.FileRepository
	subscriberRepo  repository.SubscriberRepository
	store           ObjectStore
	publisher       pubsub.Publisher
	usageEventTopic string
	appBaseURL      string
	signedURLExpiry time.Duration
	logger          zerolog.Logger
}

// NewFileService creates a new FileService. The publisher may be nil, in which
// case usage events are not emitted.
func NewFileService(
	repo repository.FileRepository,
	subscriberRepo repository.SubscriberRepository,
	store ObjectStore,
	publisher pubsub.Publisher,
	usageEventTopic string,
	appBaseURL string,
	signedURLExpiry time.Duration,
	logger zerolog.Logger,
) FileService {
	return &fileService{
		repo:            repo,
		subscriberRepo:  subscriberRepo,
		store:           store,
		publisher:       publisher,
		usageEventTopic: usageEventTopic,
		appBaseURL:      appBaseURL,
		signedURLExpiry: signedURLExpiry,
		logger:          logger.With().Str("service", "FileService").Logger(),
	}
}

// newShareID returns an opaque random token used for unauthenticated download
// lookups.
func newShareID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ShareURL builds the public download link for a share token.
func (s *fileService) ShareURL(shareID string) string {
	return fmt.Sprintf("%s/download/%s", s.appBaseURL, shareID)
}

// Upload reserves quota, stores the object and inserts the file record. A
// storage or database failure releases the reservation best-effort.
func (s *fileService) Upload(ctx context.Context, userID, filename, mimeType string, size int64, body io.Reader) (*model.File, string, error) {
	sub, err := s.subscriberRepo.ReserveUpload(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUploadLimitExceeded) {
			var tier *string
			if sub != nil {
				tier = sub.SubscriptionTier
			}
			return nil, "", &QuotaExceededError{Message: model.UpgradeMessage(tier)}
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to reserve upload quota")
		return nil, "", err
	}

	shareID := newShareID()
	storagePath := fmt.Sprintf("files/%s/%s_%s", userID, shareID, filepath.Base(filename))

	if err := s.store.Put(ctx, storagePath, mimeType, size, body); err != nil {
		s.releaseReservation(ctx, userID)
		s.logger.Error().Err(err).Str("storage_path", storagePath).Msg("Failed to store uploaded object")
		return nil, "", fmt.Errorf("store object: %w", err)
	}

	file := &model.File{
		ID:               uuid.NewString(),
		UserID:           userID,
		OriginalFilename: filename,
		StoragePath:      storagePath,
		FileSize:         size,
		MimeType:         mimeType,
		ShareID:          shareID,
	}
	stored, err := s.repo.CreateFile(ctx, file)
	if err != nil {
		if delErr := s.store.Delete(ctx, storagePath); delErr != nil {
			s.logger.Error().Err(delErr).Str("storage_path", storagePath).Msg("Failed to clean up object after insert failure")
		}
		s.releaseReservation(ctx, userID)
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to insert file record")
		return nil, "", err
	}

	s.publishUsageEvent(ctx, "file_uploaded", stored)
	return stored, s.ShareURL(stored.ShareID), nil
}

func (s *fileService) releaseReservation(ctx context.Context, userID string) {
	if err := s.subscriberRepo.ReleaseUpload(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to release upload reservation")
	}
}

// publishUsageEvent emits a usage event for analytics. Failures are logged
// only; the user-facing operation has already succeeded.
func (s *fileService) publishUsageEvent(ctx context.Context, eventType string, f *model.File) {
	if s.publisher == nil {
		return
	}
	payload := struct {
		EventType string `json:"event_type"`
		FileID    string `json:"file_id"`
		UserID    string `json:"user_id"`
		FileSize  int64  `json:"file_size"`
	}{eventType, f.ID, f.UserID, f.FileSize}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("file_id", f.ID).Msg("Failed to marshal usage event")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.usageEventTopic, data); err != nil {
		s.logger.Error().Err(err).Str("topic", s.usageEventTopic).Msg("Failed to publish usage event")
	}
}

// ListFiles returns the user's files, newest first.
func (s *fileService) ListFiles(ctx context.Context, userID string, limit, offset int) ([]model.File, error) {
	files, err := s.repo.GetFilesByUserID(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list files")
		return nil, err
	}
	return files, nil
}

// DeleteFile removes the stored object and the file record. Only the owner
// may delete; anyone else sees not-found.
func (s *fileService) DeleteFile(ctx context.Context, userID, fileID string) error {
	file, err := s.repo.GetFileByID(ctx, fileID)
	if err != nil {
		s.logger.Error().Err(err).Str("file_id", fileID).Msg("Failed to get file for deletion")
		return err
	}
	if file == nil || file.UserID != userID {
		return ErrFileNotFound
	}

	if err := s.store.Delete(ctx, file.StoragePath); err != nil {
		s.logger.Error().Err(err).Str("storage_path", file.StoragePath).Msg("Failed to delete object from storage")
		// Not fatal, still remove the database record.
	}
	if err := s.repo.DeleteFile(ctx, fileID); err != nil {
		s.logger.Error().Err(err).Str("file_id", fileID).Msg("Failed to delete file record")
		return err
	}

	s.publishUsageEvent(ctx, "file_deleted", file)
	return nil
}

// GetShare resolves a public share token to its file record.
func (s *fileService) GetShare(ctx context.Context, shareID string) (*model.File, error) {
	file, err := s.repo.GetFileByShareID(ctx, shareID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to resolve share token")
		return nil, err
	}
	return file, nil
}

// CreateDownloadURL issues a presigned URL for the shared file. The download
// counter increment is best-effort; a failed increment never blocks the
// download.
func (s *fileService) CreateDownloadURL(ctx context.Context, shareID string) (*model.File, string, error) {
	file, err := s.GetShare(ctx, shareID)
	if err != nil {
		return nil, "", err
	}
	if file == nil {
		return nil, "", nil
	}
	url, err := s.store.PresignGet(ctx, file.StoragePath, file.OriginalFilename, s.signedURLExpiry)
	if err != nil {
		s.logger.Error().Err(err).Str("file_id", file.ID).Msg("Failed to presign download URL")
		return nil, "", err
	}
	if err := s.repo.IncrementDownloadCount(ctx, file.ID); err != nil {
		s.logger.Error().Err(err).Str("file_id", file.ID).Msg("Failed to increment download count")
	}
	return file, url, nil
}
