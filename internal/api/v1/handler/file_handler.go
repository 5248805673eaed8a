package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/rs/zerolog"
)

const defaultListLimit = 50

// FileHandler handles file upload, listing, deletion and public share
// endpoints.
type FileHandler struct {
	fileSvc         service.FileService
	appBaseURL      string
	maxUploadBytes  int64
	signedURLExpiry int
	logger          zerolog.Logger
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(fileSvc service.FileService, appBaseURL string, maxUploadSizeMB, signedURLExpirySec int, logger zerolog.Logger) *FileHandler {
	return &FileHandler{
		fileSvc:         fileSvc,
		appBaseURL:      appBaseURL,
		maxUploadBytes:  int64(maxUploadSizeMB) << 20,
		signedURLExpiry: signedURLExpirySec,
		logger:          logger,
	}
}

// RegisterRoutes mounts file routes. Share endpoints are public: download
// links work without an account.
func (h *FileHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/files", authMw(http.HandlerFunc(h.handleFiles)))
	mux.Handle("/files/", authMw(http.HandlerFunc(h.handleFile)))
	mux.Handle("/shares/", http.HandlerFunc(h.handleShare))
}

func (h *FileHandler) handleFiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.uploadFile(w, r)
	case http.MethodGet:
		h.listFiles(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *FileHandler) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	h.deleteFile(w, r)
}

func (h *FileHandler) handleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/shares/")
	if shareID, found := strings.CutSuffix(rest, "/download"); found {
		h.downloadShare(w, r, shareID)
		return
	}
	h.getShare(w, r, rest)
}

// uploadFile godoc
// @Summary Upload a file
// @Description Accepts a multipart upload, enforces the subscriber's quota and returns the file record with its share link.
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} dto.FileResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse "Upload limit reached"
// @Failure 500 {object} dto.ErrorResponse
// @Router /files [post]
func (h *FileHandler) uploadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or oversized file field")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	stored, shareURL, err := h.fileSvc.Upload(r.Context(), userID, header.Filename, mimeType, header.Size, file)
	if err != nil {
		var quotaErr *service.QuotaExceededError
		if errors.As(err, &quotaErr) {
			writeError(w, http.StatusForbidden, quotaErr.Message)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to upload file")
		writeError(w, http.StatusInternalServerError, "failed to upload file")
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewFileResponse(stored, shareURL))
}

// listFiles godoc
// @Summary List the caller's files
// @Tags files
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} dto.FileResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /files [get]
func (h *FileHandler) listFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	files, err := h.fileSvc.ListFiles(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list files")
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	resp := make([]dto.FileResponse, 0, len(files))
	for i := range files {
		f := &files[i]
		resp = append(resp, dto.NewFileResponse(f, h.appBaseURL+"/download/"+f.ShareID))
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteFile godoc
// @Summary Delete a file
// @Description Removes the stored object and the file record. The share link stops resolving.
// @Tags files
// @Param fileId path string true "File ID"
// @Success 204
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /files/{fileId} [delete]
func (h *FileHandler) deleteFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	fileID := strings.TrimPrefix(r.URL.Path, "/files/")
	if fileID == "" {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err := h.fileSvc.DeleteFile(r.Context(), userID, fileID); err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error().Err(err).Str("file_id", fileID).Msg("failed to delete file")
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getShare godoc
// @Summary Resolve a share link
// @Description Public lookup of file metadata by share token.
// @Tags shares
// @Produce json
// @Param shareId path string true "Share ID"
// @Success 200 {object} dto.ShareResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /shares/{shareId} [get]
func (h *FileHandler) getShare(w http.ResponseWriter, r *http.Request, shareID string) {
	file, err := h.fileSvc.GetShare(r.Context(), shareID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to resolve share")
		writeError(w, http.StatusInternalServerError, "failed to resolve share")
		return
	}
	if file == nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewShareResponse(file))
}

// downloadShare godoc
// @Summary Get a download URL for a shared file
// @Description Public endpoint issuing a time-limited download URL and counting the download.
// @Tags shares
// @Produce json
// @Param shareId path string true "Share ID"
// @Success 200 {object} dto.DownloadURLResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /shares/{shareId}/download [get]
func (h *FileHandler) downloadShare(w http.ResponseWriter, r *http.Request, shareID string) {
	file, url, err := h.fileSvc.CreateDownloadURL(r.Context(), shareID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create download URL")
		writeError(w, http.StatusInternalServerError, "failed to create download URL")
		return
	}
	if file == nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, dto.DownloadURLResponse{URL: url, ExpiresIn: h.signedURLExpiry})
}
