package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ecotrack-accounts/internal/core/domain"
	"github.com/arklim/ecotrack-accounts/internal/repository"
	"github.com/arklim/ecotrack-accounts/internal/usecase"
)

type fakeAccountService struct {
	registerIn  usecase.RegisterInput
	registerID  string
	loginResult *usecase.LoginResult
	profile     *domain.Profile
	prefs       domain.Preferences
	update      usecase.ProfileUpdate
	lastID      string
	err         error
}

func (f *fakeAccountService) Register(_ context.Context, in usecase.RegisterInput) (string, error) {
	f.registerIn = in
	return f.registerID, f.err
}

func (f *fakeAccountService) Login(_ context.Context, identifier, _ string) (*usecase.LoginResult, error) {
	f.lastID = identifier
	if f.err != nil {
		return nil, f.err
	}
	return f.loginResult, nil
}

func (f *fakeAccountService) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	f.lastID = id
	return f.profile, f.err
}

func (f *fakeAccountService) UpdateProfileInfo(_ context.Context, id string, update usecase.ProfileUpdate) error {
	f.lastID = id
	f.update = update
	return f.err
}

func (f *fakeAccountService) UpdateEmail(_ context.Context, id, _ string) error {
	f.lastID = id
	return f.err
}

func (f *fakeAccountService) UpdatePassword(_ context.Context, id, _, _ string) error {
	f.lastID = id
	return f.err
}

func (f *fakeAccountService) UpdatePreferences(_ context.Context, id string, prefs domain.Preferences) error {
	f.lastID = id
	f.prefs = prefs
	return f.err
}

func (f *fakeAccountService) DeleteAccount(_ context.Context, id string) error {
	f.lastID = id
	return f.err
}

func newAccountRouter(svc AccountService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAccountHandler(svc)

	r := gin.New()
	users := r.Group("/api/v1/users")
	users.POST("/register", h.Register)
	users.POST("/login", h.Login)
	users.GET("/profile/:id", h.GetProfile)
	users.PUT("/profile/:id", h.UpdateProfile)
	users.PUT("/email/:id", h.UpdateEmail)
	users.PUT("/password/:id", h.UpdatePassword)
	users.PUT("/preferences/:id", h.UpdatePreferences)
	users.DELETE("/:id", h.DeleteAccount)
	return r
}

func serveJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRegisterReturnsCreatedAccount(t *testing.T) {
	svc := &fakeAccountService{registerID: "u1"}
	router := newAccountRouter(svc)

	rec := serveJSON(router, http.MethodPost, "/api/v1/users/register",
		`{"username":"alice","firstName":"Alice","lastName":"Smith","email":"a@x.io","password":"Secr3t!Pass"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["userId"] != "u1" || body["message"] != "User registered successfully!" {
		t.Fatalf("unexpected body: %v", body)
	}
	if svc.registerIn.Username != "alice" || svc.registerIn.Email != "a@x.io" || svc.registerIn.FirstName != "Alice" {
		t.Fatalf("unexpected register input: %+v", svc.registerIn)
	}
}

func TestRegisterRejectsMalformedJSON(t *testing.T) {
	router := newAccountRouter(&fakeAccountService{})

	rec := serveJSON(router, http.MethodPost, "/api/v1/users/register", `{"username":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestLoginReturnsTokenAndSummary(t *testing.T) {
	svc := &fakeAccountService{loginResult: &usecase.LoginResult{
		Token:    "signed",
		UserID:   "u1",
		Username: "alice",
		Email:    "a@x.io",
	}}
	router := newAccountRouter(svc)

	rec := serveJSON(router, http.MethodPost, "/api/v1/users/login", `{"identifier":"alice","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["token"] != "signed" || body["token_type"] != "Bearer" || body["userId"] != "u1" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["message"] != "Login successful!" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	if svc.lastID != "alice" {
		t.Fatalf("expected identifier alice, got %q", svc.lastID)
	}
}

func TestAccountErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "validation",
			err:     &usecase.ValidationError{Field: "email", Message: "email is required"},
			status:  http.StatusBadRequest,
			message: "email is required",
		},
		{
			name:    "invalid password",
			err:     usecase.ErrInvalidCredentials,
			status:  http.StatusUnauthorized,
			message: "Invalid password",
		},
		{
			name:    "unknown account",
			err:     usecase.ErrAccountNotFound,
			status:  http.StatusNotFound,
			message: "User not found",
		},
		{
			name:    "duplicate email",
			err:     fmt.Errorf("%w: create identity: %w", usecase.ErrIdentityProvider, repository.ErrAlreadyExists),
			status:  http.StatusConflict,
			message: "email already registered",
		},
		{
			name:   "provider failure",
			err:    fmt.Errorf("%w: create identity: %w", usecase.ErrIdentityProvider, errors.New("quota")),
			status: http.StatusBadGateway,
		},
		{
			name:   "store read",
			err:    fmt.Errorf("%w: query: %w", usecase.ErrStoreRead, errors.New("unavailable")),
			status: http.StatusServiceUnavailable,
		},
		{
			name: "inconsistent",
			err: &usecase.InconsistentStateError{
				Operation:       usecase.OperationRegister,
				AccountID:       "u1",
				Err:             fmt.Errorf("%w: put: %w", usecase.ErrStoreWrite, errors.New("boom")),
				CompensationErr: errors.New("provider down"),
			},
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
		{
			name:    "unclassified",
			err:     errors.New("unexpected"),
			status:  http.StatusInternalServerError,
			message: "login failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAccountRouter(&fakeAccountService{err: tt.err})

			rec := serveJSON(router, http.MethodPost, "/api/v1/users/login", `{"identifier":"alice","password":"pw"}`)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			body := decodeBody(t, rec)
			if tt.message != "" && body["error"] != tt.message {
				t.Fatalf("expected error %q, got %v", tt.message, body["error"])
			}
			if strings.Contains(rec.Body.String(), "provider down") || strings.Contains(rec.Body.String(), "boom") {
				t.Fatalf("internal error detail leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestGetProfile(t *testing.T) {
	svc := &fakeAccountService{profile: &domain.Profile{ID: "u1", Username: "alice", Email: "a@x.io"}}
	router := newAccountRouter(svc)

	rec := serveJSON(router, http.MethodGet, "/api/v1/users/profile/u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["userId"] != "u1" || body["username"] != "alice" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["passwordHash"]; ok {
		t.Fatalf("profile exposes password hash: %v", body)
	}
}

func TestGetProfileReturnsNotFoundForAbsentAccount(t *testing.T) {
	router := newAccountRouter(&fakeAccountService{})

	rec := serveJSON(router, http.MethodGet, "/api/v1/users/profile/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "User not found" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestUpdateProfilePassesFields(t *testing.T) {
	svc := &fakeAccountService{}
	router := newAccountRouter(svc)

	rec := serveJSON(router, http.MethodPut, "/api/v1/users/profile/u1",
		`{"firstName":"Alicia","lastName":"Smith","location":"Lisbon"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastID != "u1" {
		t.Fatalf("expected id u1, got %q", svc.lastID)
	}
	want := usecase.ProfileUpdate{FirstName: "Alicia", LastName: "Smith", Location: "Lisbon"}
	if svc.update != want {
		t.Fatalf("unexpected update: %+v", svc.update)
	}
}

func TestUpdatePreferencesPassesMap(t *testing.T) {
	svc := &fakeAccountService{}
	router := newAccountRouter(svc)

	rec := serveJSON(router, http.MethodPut, "/api/v1/users/preferences/u1",
		`{"preferences":{"theme":"dark","units":"imperial"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if svc.prefs["theme"] != "dark" || svc.prefs["units"] != "imperial" || len(svc.prefs) != 2 {
		t.Fatalf("unexpected preferences: %v", svc.prefs)
	}
}

func TestMutatingEndpointsReturnMessages(t *testing.T) {
	tests := []struct {
		method  string
		path    string
		body    string
		message string
	}{
		{http.MethodPut, "/api/v1/users/email/u1", `{"email":"b@x.io"}`, "Email updated successfully"},
		{http.MethodPut, "/api/v1/users/password/u1", `{"oldPassword":"a","newPassword":"b"}`, "Password updated successfully"},
		{http.MethodDelete, "/api/v1/users/u1", "", "User deleted successfully"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			svc := &fakeAccountService{}
			router := newAccountRouter(svc)

			rec := serveJSON(router, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if body := decodeBody(t, rec); body["message"] != tt.message {
				t.Fatalf("unexpected body: %v", body)
			}
			if svc.lastID != "u1" {
				t.Fatalf("expected id u1, got %q", svc.lastID)
			}
		})
	}
}
