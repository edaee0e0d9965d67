package upload

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/NighHunter/multi-chat-backend/internal/httputil"
	"github.com/NighHunter/multi-chat-backend/internal/metrics"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 64 << 20

type Handler struct {
	store   *Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(store *Store, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/upload", h.Upload)
}

// Upload stores attachment files and returns their descriptors. Clients
// embed the descriptors into a message post afterwards.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	if _, err := strconv.Atoi(r.FormValue("class_id")); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "class_id is required")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		httputil.RespondWithError(w, http.StatusBadRequest, "files are required")
		return
	}

	saved := make([]BlobInfo, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			httputil.RespondWithError(w, http.StatusBadRequest, "failed to open file")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			httputil.RespondWithError(w, http.StatusBadRequest, "failed to read file")
			return
		}

		info, err := h.store.SaveBlob(header.Filename, data, header.Header.Get("Content-Type"))
		if err != nil {
			h.logger.ErrorContext(r.Context(), "failed to store blob",
				"filename", header.Filename, "error", err)
			httputil.RespondWithError(w, http.StatusInternalServerError, "failed to store file")
			return
		}

		h.metrics.RecordBlobStored(r.Context())
		saved = append(saved, *info)
	}

	h.logger.InfoContext(r.Context(), "stored uploads", "count", len(saved))

	httputil.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"files": saved})
}
