package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/NighHunter/multi-chat-backend/internal/httputil"
	"github.com/NighHunter/multi-chat-backend/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/classes/{classID}/messages", h.ListMessages)
	router.Post("/classes/{classID}/messages", h.PostMessage)
	router.Delete("/classes/{classID}/messages/{messageID}", h.DeleteMessage)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.classID(w, r)
	if !ok {
		return
	}

	channel := r.URL.Query().Get("channel")

	messages, err := h.service.List(r.Context(), classID, channel)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, messages)
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.classID(w, r)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "posting message",
		"class_id", classID, "channel", req.Channel, "sender", req.SenderEmail)
	msg, err := h.service.Post(r.Context(), classID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordMessagePosted(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, msg)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.classID(w, r)
	if !ok {
		return
	}

	messageID, err := strconv.Atoi(chi.URLParam(r, "messageID"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid message ID")
		return
	}

	teacherEmail := r.URL.Query().Get("teacher_email")
	if teacherEmail == "" {
		httputil.RespondWithError(w, http.StatusBadRequest, "teacher_email is required")
		return
	}

	h.logger.InfoContext(r.Context(), "deleting message",
		"class_id", classID, "message_id", messageID)
	if err := h.service.Delete(r.Context(), classID, messageID, teacherEmail); err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.RespondWithMessage(w, http.StatusOK, "Message deleted")
}

func (h *Handler) classID(w http.ResponseWriter, r *http.Request) (int, bool) {
	classID, err := strconv.Atoi(chi.URLParam(r, "classID"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid class ID")
		return 0, false
	}
	return classID, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrClassNotFound), errors.Is(err, ErrMessageNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		httputil.RespondWithError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
