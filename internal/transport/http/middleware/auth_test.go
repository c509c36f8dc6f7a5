package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ecotrack-accounts/internal/infra/security"
	"github.com/arklim/ecotrack-accounts/internal/usecase"
)

type fakeTokenParser struct {
	claims *security.AccessTokenClaims
	err    error
	raw    string
}

func (f *fakeTokenParser) ParseToken(raw string) (*security.AccessTokenClaims, error) {
	f.raw = raw
	return f.claims, f.err
}

func newAuthRouter(tokens TokenParser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/profile/:id", RequireAuth(tokens), RequireSelf("id"), func(c *gin.Context) {
		userID, _ := GetAuthenticatedUserID(c)
		c.String(http.StatusOK, userID)
	})
	return router
}

func serveWithToken(router *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRequireAuthAcceptsOwnAccount(t *testing.T) {
	tokens := &fakeTokenParser{claims: &security.AccessTokenClaims{UserID: "u1"}}
	rr := serveWithToken(newAuthRouter(tokens), "/profile/u1", "bearer abc.def.ghi")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "u1" {
		t.Fatalf("expected handler to see u1, got %q", rr.Body.String())
	}
	if tokens.raw != "abc.def.ghi" {
		t.Fatalf("unexpected token passed to parser %q", tokens.raw)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
		tokens *fakeTokenParser
		path   string
		status int
		msg    string
	}{
		{"missing header", "", &fakeTokenParser{}, "/profile/u1", http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", "Basic dXNlcjpwdw==", &fakeTokenParser{}, "/profile/u1", http.StatusUnauthorized, "invalid authorization format: expected 'Bearer <token>'"},
		{"empty token", "Bearer   ", &fakeTokenParser{}, "/profile/u1", http.StatusUnauthorized, "missing access token"},
		{"expired", "Bearer t", &fakeTokenParser{err: usecase.ErrExpiredAccessToken}, "/profile/u1", http.StatusUnauthorized, "access token expired"},
		{"invalid", "Bearer t", &fakeTokenParser{err: usecase.ErrInvalidAccessToken}, "/profile/u1", http.StatusUnauthorized, "invalid access token"},
		{"other account", "Bearer t", &fakeTokenParser{claims: &security.AccessTokenClaims{UserID: "u2"}}, "/profile/u1", http.StatusForbidden, "insufficient permissions"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serveWithToken(newAuthRouter(tc.tokens), tc.path, tc.header)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}

			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tc.msg {
				t.Fatalf("expected error %q, got %q", tc.msg, body.Error)
			}
			if body.TraceID == "" {
				t.Fatal("expected trace id in error body")
			}
		})
	}
}
