package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/NighHunter/multi-chat-backend/internal/chat"
	"github.com/NighHunter/multi-chat-backend/internal/classroom"
	"github.com/NighHunter/multi-chat-backend/internal/metrics"
	"github.com/NighHunter/multi-chat-backend/internal/testdb"
	"github.com/NighHunter/multi-chat-backend/internal/upload"
	"github.com/NighHunter/multi-chat-backend/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, router chi.Router, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func avatarUpload(t *testing.T, router chi.Router, email, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("email", email))

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/profile/avatar", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUserHandler_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t,
		(*user.User)(nil),
		(*classroom.Class)(nil),
		(*classroom.ClassMember)(nil),
		(*chat.Message)(nil),
	)

	db := pgContainer.DB
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mockMetrics := metrics.NewMock()

	uploadRoot := t.TempDir()
	blobStore, err := upload.NewStore(uploadRoot, "/uploads")
	require.NoError(t, err)

	userRepo := user.NewRepository(db)
	chatRepo := chat.NewRepository(db)
	classRepo := classroom.NewRepository(db, chatRepo)
	classService := classroom.NewService(classRepo, userRepo)
	userService := user.NewService(userRepo, classService)
	userHandler := user.NewHandler(userService, blobStore, logger, mockMetrics)

	router := chi.NewRouter()
	userHandler.RegisterRoutes(router)

	cleanup := func() {
		testdb.CleanupTables(t, db, "users", "classes", "class_members", "messages")
	}

	registerStudent := func(t *testing.T, name, sid, email, password string) *httptest.ResponseRecorder {
		t.Helper()
		return postJSON(t, router, "/auth/register/student", user.RegisterStudentRequest{
			FullName: name, StudentID: sid, Email: email, Password: password,
		})
	}

	t.Run("RegisterAndLoginStudent", func(t *testing.T) {
		cleanup()

		w := registerStudent(t, "Sam Student", "S1", "A@X.com", "pw")
		assert.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		student := resp["student"].(map[string]interface{})
		assert.Equal(t, "a@x.com", student["email"])
		assert.Equal(t, "s1", student["student_id"])

		// Login uses the secondary key, case-insensitively
		w = postJSON(t, router, "/auth/login/student", user.StudentLoginRequest{
			StudentID: "s1", Password: "pw",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var login user.LoginResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&login))
		assert.Equal(t, user.SessionToken, login.Token)
		assert.Equal(t, user.RoleStudent, login.Role)
		assert.Equal(t, "a@x.com", login.Email)
	})

	t.Run("RegisterStudent_Duplicates", func(t *testing.T) {
		cleanup()
		require.Equal(t, http.StatusCreated,
			registerStudent(t, "Sam Student", "S1", "a@x.com", "pw").Code)

		w := registerStudent(t, "Other", "S1", "other@x.com", "pw")
		assert.Equal(t, http.StatusConflict, w.Code)

		w = registerStudent(t, "Other", "S2", "a@x.com", "pw")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("LoginStudent_WrongPassword", func(t *testing.T) {
		cleanup()
		require.Equal(t, http.StatusCreated,
			registerStudent(t, "Sam Student", "S1", "a@x.com", "pw").Code)

		w := postJSON(t, router, "/auth/login/student", user.StudentLoginRequest{
			StudentID: "S1", Password: "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = postJSON(t, router, "/auth/login/student", user.StudentLoginRequest{
			StudentID: "ghost", Password: "pw",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("RegisterAdmin_OnlyOnce", func(t *testing.T) {
		cleanup()

		w := postJSON(t, router, "/auth/register/admin", user.RegisterAdminRequest{
			FullName: "Root Admin", Email: "admin@x.com", Password: "pw",
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		w = postJSON(t, router, "/auth/register/admin", user.RegisterAdminRequest{
			FullName: "Second Admin", Email: "admin2@x.com", Password: "pw",
		})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = postJSON(t, router, "/auth/login/admin", user.AdminLoginRequest{
			Email: "admin@x.com", Password: "pw",
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("CreateTeacherAndLogin", func(t *testing.T) {
		cleanup()

		w := postJSON(t, router, "/admin/teachers", user.CreateTeacherRequest{
			FullName: "Alice Teacher", Email: "alice@x.com", StaffID: "T1", TempPassword: "temp",
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		var view user.AdminUserView
		require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
		assert.Equal(t, "T1", view.StaffID)
		assert.Equal(t, "temp", view.Password)

		w = postJSON(t, router, "/auth/login/teacher", user.TeacherLoginRequest{
			StaffID: "T1", Password: "temp",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		// Duplicate staff id
		w = postJSON(t, router, "/admin/teachers", user.CreateTeacherRequest{
			FullName: "Bob Teacher", Email: "bob@x.com", StaffID: "T1", TempPassword: "temp",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("ListTeachers_ExposesStoredCredential", func(t *testing.T) {
		cleanup()
		w := postJSON(t, router, "/admin/teachers", user.CreateTeacherRequest{
			FullName: "Alice Teacher", Email: "alice@x.com", StaffID: "T1", TempPassword: "temp",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		req := httptest.NewRequest(http.MethodGet, "/admin/teachers", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var teachers []user.AdminUserView
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&teachers))
		require.Len(t, teachers, 1)
		assert.Equal(t, "temp", teachers[0].Password)
	})

	t.Run("ProfileAndAvatar", func(t *testing.T) {
		cleanup()
		require.Equal(t, http.StatusCreated,
			registerStudent(t, "Sam Student", "S1", "a@x.com", "pw").Code)

		req := httptest.NewRequest(http.MethodGet, "/profile?email=A@x.com", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var profile user.Profile
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
		assert.Equal(t, "a@x.com", profile.Email)
		assert.Empty(t, profile.AvatarURL)

		w := avatarUpload(t, router, "a@x.com", "me.png", "image/png", []byte("png-bytes"))
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.NewDecoder(w.Body).Decode(&profile))
		assert.Contains(t, profile.AvatarURL, "/uploads/avatars/")
	})

	t.Run("Avatar_RejectsNonImage", func(t *testing.T) {
		cleanup()
		require.Equal(t, http.StatusCreated,
			registerStudent(t, "Sam Student", "S1", "a@x.com", "pw").Code)

		w := avatarUpload(t, router, "a@x.com", "notes.txt", "text/plain", []byte("hello"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Avatar_UnknownUserLeavesNoFile", func(t *testing.T) {
		cleanup()

		avatarDir := filepath.Join(uploadRoot, "avatars")
		before, err := os.ReadDir(avatarDir)
		require.NoError(t, err)

		w := avatarUpload(t, router, "ghost@x.com", "me.png", "image/png", []byte("png-bytes"))
		assert.Equal(t, http.StatusNotFound, w.Code)

		after, err := os.ReadDir(avatarDir)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	// Two registrations can interleave between the uniqueness pre-checks
	// and the insert; the loser's unique violation must surface as the
	// conflict matching the colliding column.
	t.Run("Register_RacingDuplicates", func(t *testing.T) {
		cleanup()
		ctx := context.Background()
		require.Equal(t, http.StatusCreated,
			registerStudent(t, "Sam Student", "S1", "a@x.com", "pw").Code)

		raceService := user.NewService(&blindUsersRepo{Repository: userRepo}, classService)

		_, err := raceService.RegisterStudent(ctx, user.RegisterStudentRequest{
			FullName: "Other", StudentID: "S1", Email: "other@x.com", Password: "pw",
		})
		assert.ErrorIs(t, err, user.ErrStudentIDTaken)

		_, err = raceService.RegisterStudent(ctx, user.RegisterStudentRequest{
			FullName: "Other", StudentID: "S2", Email: "a@x.com", Password: "pw",
		})
		assert.ErrorIs(t, err, user.ErrEmailTaken)

		_, err = raceService.CreateTeacher(ctx, user.CreateTeacherRequest{
			FullName: "Alice Teacher", Email: "alice@x.com", StaffID: "T1", TempPassword: "temp",
		})
		require.NoError(t, err)
		_, err = raceService.CreateTeacher(ctx, user.CreateTeacherRequest{
			FullName: "Bob Teacher", Email: "bob@x.com", StaffID: "T1", TempPassword: "temp",
		})
		assert.ErrorIs(t, err, user.ErrStaffIDTaken)

		count, err := db.NewSelect().Model((*user.User)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("Profile_UnknownUser", func(t *testing.T) {
		cleanup()
		req := httptest.NewRequest(http.MethodGet, "/profile?email=ghost@x.com", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("DeleteTeacher_CascadesOwnedClasses", func(t *testing.T) {
		cleanup()
		ctx := context.Background()

		w := postJSON(t, router, "/admin/teachers", user.CreateTeacherRequest{
			FullName: "Alice Teacher", Email: "alice@x.com", StaffID: "T1", TempPassword: "temp",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var teacher user.AdminUserView
		require.NoError(t, json.NewDecoder(w.Body).Decode(&teacher))

		cls, err := classService.CreateClass(ctx, classroom.CreateClassRequest{
			Name: "Algorithms", Code: "ABC1", OwnerEmail: "alice@x.com",
		})
		require.NoError(t, err)

		msg := &chat.Message{
			ClassID: cls.ID, Channel: "general",
			SenderEmail: "alice@x.com", SenderName: "Alice",
			Content: "doomed", AttachmentsJSON: "[]", Timestamp: time.Now().UTC(),
		}
		_, err = db.NewInsert().Model(msg).Exec(ctx)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodDelete, "/admin/teachers/"+strconv.Itoa(teacher.ID), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		classCount, err := db.NewSelect().Model((*classroom.Class)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, classCount)

		messageCount, err := db.NewSelect().Model((*chat.Message)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, messageCount)

		memberCount, err := db.NewSelect().Model((*classroom.ClassMember)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, memberCount)

		userCount, err := db.NewSelect().Model((*user.User)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, userCount)
	})

	t.Run("DeleteStudent_RemovesMemberships", func(t *testing.T) {
		cleanup()
		ctx := context.Background()

		w := postJSON(t, router, "/admin/teachers", user.CreateTeacherRequest{
			FullName: "Alice Teacher", Email: "alice@x.com", StaffID: "T1", TempPassword: "temp",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		require.Equal(t, http.StatusCreated,
			registerStudent(t, "Sam Student", "S1", "a@x.com", "pw").Code)

		_, err := classService.CreateClass(ctx, classroom.CreateClassRequest{
			Name: "Algorithms", Code: "ABC1", OwnerEmail: "alice@x.com",
		})
		require.NoError(t, err)
		_, err = classService.JoinClass(ctx, classroom.JoinClassRequest{
			StudentEmail: "a@x.com", Code: "ABC1",
		})
		require.NoError(t, err)

		students, err := userService.ListStudents(ctx)
		require.NoError(t, err)
		require.Len(t, students, 1)

		req := httptest.NewRequest(http.MethodDelete, "/admin/students/"+strconv.Itoa(students[0].ID), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		// The class survives, only the student's membership goes
		classCount, err := db.NewSelect().Model((*classroom.Class)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, classCount)

		memberCount, err := db.NewSelect().Model((*classroom.ClassMember)(nil)).
			Where("user_id = ?", students[0].ID).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, memberCount)
	})
}

// blindUsersRepo reports no user for the uniqueness lookups regardless
// of what is stored, reproducing the window between a registration's
// pre-checks and its insert.
type blindUsersRepo struct {
	user.Repository
}

func (r *blindUsersRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}

func (r *blindUsersRepo) GetByStudentID(ctx context.Context, studentID string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}

func (r *blindUsersRepo) GetByStaffID(ctx context.Context, staffID string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}
