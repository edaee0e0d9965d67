package classroom

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
	router.Post("/teacher/classes", h.CreateClass)
	router.Get("/teacher/classes", h.ListTeacherClasses)
	router.Post("/teacher/remove-class", h.RemoveClass)
	router.Post("/teacher/approve", h.Approve)
	router.Post("/student/join", h.Join)
	router.Get("/student/classes", h.ListStudentClasses)
	router.Get("/classes/{classID}/members", h.ListMembers)
}

func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.logger.InfoContext(r.Context(), "creating class", "code", req.Code, "owner", req.OwnerEmail)
	cls, err := h.service.CreateClass(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordClassCreated(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, cls)
}

func (h *Handler) ListTeacherClasses(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("owner_email")
	if email == "" {
		httputil.RespondWithError(w, http.StatusBadRequest, "owner_email is required")
		return
	}

	classes, err := h.service.ListForTeacher(r.Context(), email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, classes)
}

func (h *Handler) RemoveClass(w http.ResponseWriter, r *http.Request) {
	var req RemoveClassRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.logger.InfoContext(r.Context(), "removing class", "class_id", req.ClassID)
	if err := h.service.RemoveClass(r.Context(), req.ClassID, req.OwnerEmail); err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.RespondWithMessage(w, http.StatusOK, "Class deleted")
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.logger.InfoContext(r.Context(), "approving membership",
		"class_id", req.ClassID, "student", req.StudentEmail)
	if err := h.service.ApproveMembership(r.Context(), req.ClassID, req.StudentEmail); err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.RespondWithMessage(w, http.StatusOK, "Student approved")
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinClassRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.logger.InfoContext(r.Context(), "join request", "code", req.Code, "student", req.StudentEmail)
	msg, err := h.service.JoinClass(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordJoinRequested(r.Context())

	httputil.RespondWithMessage(w, http.StatusOK, msg)
}

func (h *Handler) ListStudentClasses(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("student_email")
	if email == "" {
		httputil.RespondWithError(w, http.StatusBadRequest, "student_email is required")
		return
	}

	classes, err := h.service.ListForStudent(r.Context(), email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, classes)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	classID, err := strconv.Atoi(chi.URLParam(r, "classID"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid class ID")
		return
	}

	members, err := h.service.ListMembers(r.Context(), classID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, members)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTeacherNotFound),
		errors.Is(err, ErrStudentNotFound),
		errors.Is(err, ErrClassNotFound),
		errors.Is(err, ErrCodeNotFound),
		errors.Is(err, ErrMembershipNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrCodeTaken):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
