package userinfo

import (
	"encoding/json"
	"net/http"

	"github.com/unestilodevida/cellhub/internal/app/system/auth"
)

// Handler serves identity information for bearer-token requests.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

// ServeUserInfo returns JSON with the caller's authentication status
// and identity.
//
// Response format:
//
//	{ "isAuthenticated": bool, "id": "...", "first_name": "...", "last_name": "...", "email": "...", "role": "..." }
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user, ok := auth.CurrentUser(r)
	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"isAuthenticated": false,
			"id":              "",
			"first_name":      "",
			"last_name":       "",
			"email":           "",
			"role":            "",
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"isAuthenticated": true,
		"id":              user.ID,
		"first_name":      user.FirstName,
		"last_name":       user.LastName,
		"email":           user.Email,
		"role":            user.Role,
	})
}
