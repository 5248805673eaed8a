package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// fakeFileService returns canned results for each FileService operation.
type fakeFileService struct {
	uploadFile   *model.File
	uploadURL    string
	uploadErr    error
	files        []model.File
	deleteErr    error
	shareFile    *model.File
	downloadFile *model.File
	downloadURL  string
	downloadErr  error
}

func (f *fakeFileService) Upload(context.Context, string, string, string, int64, io.Reader) (*model.File, string, error) {
	return f.uploadFile, f.uploadURL, f.uploadErr
}

func (f *fakeFileService) ListFiles(context.Context, string, int, int) ([]model.File, error) {
	return f.files, nil
}

func (f *fakeFileService) DeleteFile(context.Context, string, string) error {
	return f.deleteErr
}

func (f *fakeFileService) GetShare(context.Context, string) (*model.File, error) {
	return f.shareFile, nil
}

func (f *fakeFileService) CreateDownloadURL(context.Context, string) (*model.File, string, error) {
	return f.downloadFile, f.downloadURL, f.downloadErr
}

func newTestFileHandler(svc service.FileService) *FileHandler {
	return NewFileHandler(svc, "https://app.example.com", 100, 3600, zerolog.Nop())
}

func withUser(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, userID)
	return r.WithContext(ctx)
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadFileReturnsRecordAndShareURL(t *testing.T) {
	stored := &model.File{
		ID:               "file-1",
		UserID:           "user-1",
		OriginalFilename: "report.pdf",
		FileSize:         4,
		MimeType:         "application/pdf",
		ShareID:          "abc123",
		CreatedAt:        time.Now(),
	}
	h := newTestFileHandler(&fakeFileService{
		uploadFile: stored,
		uploadURL:  "https://app.example.com/download/abc123",
	})

	body, contentType := multipartUpload(t, "report.pdf", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.handleFiles(rr, withUser(req, "user-1"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp dto.FileResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "file-1" || resp.ShareURL != "https://app.example.com/download/abc123" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUploadFileUnauthenticated(t *testing.T) {
	h := newTestFileHandler(&fakeFileService{})

	body, contentType := multipartUpload(t, "report.pdf", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.handleFiles(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestUploadFileQuotaExceeded(t *testing.T) {
	h := newTestFileHandler(&fakeFileService{
		uploadErr: &service.QuotaExceededError{Message: "Please upgrade to Lite plan to continue uploading files."},
	})

	body, contentType := multipartUpload(t, "report.pdf", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.handleFiles(rr, withUser(req, "user-1"))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	var resp dto.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "Please upgrade to Lite plan to continue uploading files." {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

func TestListFiles(t *testing.T) {
	h := newTestFileHandler(&fakeFileService{
		files: []model.File{
			{ID: "file-1", UserID: "user-1", OriginalFilename: "a.txt", ShareID: "s1"},
			{ID: "file-2", UserID: "user-1", OriginalFilename: "b.txt", ShareID: "s2"},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	rr := httptest.NewRecorder()
	h.handleFiles(rr, withUser(req, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp []dto.FileResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 files, got %d", len(resp))
	}
	if resp[0].ShareURL != "https://app.example.com/download/s1" {
		t.Fatalf("unexpected share URL: %q", resp[0].ShareURL)
	}
}

func TestDeleteFileNotFound(t *testing.T) {
	h := newTestFileHandler(&fakeFileService{deleteErr: service.ErrFileNotFound})

	req := httptest.NewRequest(http.MethodDelete, "/files/file-1", nil)
	rr := httptest.NewRecorder()
	h.handleFile(rr, withUser(req, "user-1"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var resp dto.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "file not found" {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

func TestDeleteFileSuccess(t *testing.T) {
	h := newTestFileHandler(&fakeFileService{})

	req := httptest.NewRequest(http.MethodDelete, "/files/file-1", nil)
	rr := httptest.NewRecorder()
	h.handleFile(rr, withUser(req, "user-1"))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestGetShareUnknownToken(t *testing.T) {
	h := newTestFileHandler(&fakeFileService{})

	req := httptest.NewRequest(http.MethodGet, "/shares/unknown", nil)
	rr := httptest.NewRecorder()
	h.handleShare(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

// The public share lookup must not leak the owner or the storage key.
func TestGetShareOmitsPrivateFields(t *testing.T) {
	h := newTestFileHandler(&fakeFileService{
		shareFile: &model.File{
			ID:               "file-1",
			UserID:           "user-1",
			OriginalFilename: "report.pdf",
			StoragePath:      "files/user-1/abc_report.pdf",
			FileSize:         4,
			ShareID:          "abc123",
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/shares/abc123", nil)
	rr := httptest.NewRecorder()
	h.handleShare(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var raw map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, key := range []string{"user_id", "storage_path"} {
		if _, ok := raw[key]; ok {
			t.Fatalf("share response must not contain %q", key)
		}
	}
	if raw["original_filename"] != "report.pdf" {
		t.Fatalf("unexpected filename: %v", raw["original_filename"])
	}
}

func TestDownloadShare(t *testing.T) {
	h := newTestFileHandler(&fakeFileService{
		downloadFile: &model.File{ID: "file-1", ShareID: "abc123"},
		downloadURL:  "https://storage.example.com/files/user-1/abc_report.pdf?signed=1",
	})

	req := httptest.NewRequest(http.MethodGet, "/shares/abc123/download", nil)
	rr := httptest.NewRecorder()
	h.handleShare(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp dto.DownloadURLResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.URL == "" || resp.ExpiresIn != 3600 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDownloadShareUnknownToken(t *testing.T) {
	h := newTestFileHandler(&fakeFileService{})

	req := httptest.NewRequest(http.MethodGet, "/shares/unknown/download", nil)
	rr := httptest.NewRecorder()
	h.handleShare(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
