package user

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/NighHunter/multi-chat-backend/internal/httputil"
	"github.com/NighHunter/multi-chat-backend/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxAvatarBytes = 8 << 20

// BlobStore persists avatar images and returns their public URL.
type BlobStore interface {
	SaveAvatar(originalName string, data []byte) (string, error)
}

type Handler struct {
	service  Service
	blobs    BlobStore
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, blobs BlobStore, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		blobs:    blobs,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/register/student", h.RegisterStudent)
	router.Post("/auth/login/student", h.LoginStudent)
	router.Post("/auth/register/admin", h.RegisterAdmin)
	router.Post("/auth/login/admin", h.LoginAdmin)
	router.Post("/auth/login/teacher", h.LoginTeacher)

	router.Post("/admin/teachers", h.CreateTeacher)
	router.Get("/admin/teachers", h.ListTeachers)
	router.Delete("/admin/teachers/{teacherID}", h.DeleteTeacher)
	router.Get("/admin/students", h.ListStudents)
	router.Delete("/admin/students/{studentID}", h.DeleteStudent)

	router.Get("/profile", h.GetProfile)
	router.Post("/profile/avatar", h.UploadAvatar)
}

func (h *Handler) RegisterStudent(w http.ResponseWriter, r *http.Request) {
	var req RegisterStudentRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.logger.InfoContext(r.Context(), "registering student", "email", req.Email)
	created, err := h.service.RegisterStudent(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordUserRegistered(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Student registered",
		"student": map[string]string{
			"full_name":  created.FullName,
			"student_id": created.StudentID,
			"email":      created.Email,
			"role":       created.Role,
		},
	})
}

func (h *Handler) LoginStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.LoginStudent(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "student logged in", "student_id", req.StudentID)
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req RegisterAdminRequest
	if !h.decode(w, r, &req) {
		return
	}

	created, err := h.service.RegisterAdmin(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordUserRegistered(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, LoginResponse{
		Token:    SessionToken,
		Role:     created.Role,
		FullName: created.FullName,
		Email:    created.Email,
	})
}

func (h *Handler) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.LoginAdmin(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "admin logged in", "email", req.Email)
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) LoginTeacher(w http.ResponseWriter, r *http.Request) {
	var req TeacherLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.LoginTeacher(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "teacher logged in", "staff_id", req.StaffID)
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	var req CreateTeacherRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.logger.InfoContext(r.Context(), "creating teacher", "email", req.Email)
	created, err := h.service.CreateTeacher(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordUserRegistered(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, created.adminView())
}

func (h *Handler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.service.ListTeachers(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, teachers)
}

func (h *Handler) DeleteTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "teacherID"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid teacher ID")
		return
	}

	h.logger.InfoContext(r.Context(), "deleting teacher", "id", id)
	if err := h.service.DeleteTeacher(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.RespondWithMessage(w, http.StatusOK, "Teacher deleted")
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListStudents(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, students)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid student ID")
		return
	}

	h.logger.InfoContext(r.Context(), "deleting student", "id", id)
	if err := h.service.DeleteStudent(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.RespondWithMessage(w, http.StatusOK, "Student deleted")
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httputil.RespondWithError(w, http.StatusBadRequest, "email is required")
		return
	}

	profile, err := h.service.GetProfile(r.Context(), email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	email := r.FormValue("email")
	if email == "" {
		httputil.RespondWithError(w, http.StatusBadRequest, "email is required")
		return
	}

	// Resolve the user before touching disk so an unknown email never
	// leaves an orphaned blob behind.
	if _, err := h.service.GetProfile(r.Context(), email); err != nil {
		h.handleServiceError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		httputil.RespondWithError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	url, err := h.blobs.SaveAvatar(header.Filename, data)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to store avatar", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	profile, err := h.service.UpdateAvatar(r.Context(), email, url)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordBlobStored(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, profile)
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
	case errors.Is(err, ErrUserNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrStudentIDTaken),
		errors.Is(err, ErrStaffIDTaken),
		errors.Is(err, ErrAdminExists):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		httputil.RespondWithError(w, http.StatusUnauthorized, err.Error())
	default:
		h.logger.Error("internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
