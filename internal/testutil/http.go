package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/unestilodevida/cellhub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// TestUser represents identity data for testing HTTP handlers.
type TestUser struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      string
}

// AdminUser returns a TestUser with the admin role.
func AdminUser() TestUser {
	return TestUser{
		ID:        primitive.NewObjectID().Hex(),
		FirstName: "Test",
		LastName:  "Admin",
		Email:     "admin@test.com",
		Role:      "admin",
	}
}

// LeaderUser returns a TestUser with the leader role.
func LeaderUser() TestUser {
	return TestUser{
		ID:        primitive.NewObjectID().Hex(),
		FirstName: "Test",
		LastName:  "Leader",
		Email:     "leader@test.com",
		Role:      "leader",
	}
}

// AssistantUser returns a TestUser with the assistant role.
func AssistantUser() TestUser {
	return TestUser{
		ID:        primitive.NewObjectID().Hex(),
		FirstName: "Test",
		LastName:  "Assistant",
		Email:     "assistant@test.com",
		Role:      "assistant",
	}
}

// WithUser adds an identity to the request context for testing
// authenticated handlers, bypassing the token gateway.
func WithUser(r *http.Request, user TestUser) *http.Request {
	tu := &auth.TokenUser{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Role:      user.Role,
	}
	return auth.WithTestUser(r, tu)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with an identity in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	return WithUser(httptest.NewRequest(method, target, nil), user)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	body := r.Body.String()
	if !contains(body, expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 || findSubstring(s, substr))
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
