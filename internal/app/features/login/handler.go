package login

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/unestilodevida/cellhub/internal/app/features/shared/respond"
	memberstore "github.com/unestilodevida/cellhub/internal/app/store/members"
	"github.com/unestilodevida/cellhub/internal/app/system/authutil"
	"github.com/unestilodevida/cellhub/internal/app/system/normalize"
	"github.com/unestilodevida/cellhub/internal/app/system/photos"
	"github.com/unestilodevida/cellhub/internal/app/system/ratelimit"
	"github.com/unestilodevida/cellhub/internal/app/system/timeouts"
	"github.com/unestilodevida/cellhub/internal/app/system/tokens"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler authenticates members and issues bearer tokens.
type Handler struct {
	Members *memberstore.Store
	Tokens  *tokens.Service
	Limiter *ratelimit.LoginLimiter
	Photos  *photos.Store
	BaseURL string
	Log     *zap.Logger
}

// NewHandler creates a new login handler.
func NewHandler(members *memberstore.Store, tok *tokens.Service, limiter *ratelimit.LoginLimiter, ph *photos.Store, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		Members: members,
		Tokens:  tok,
		Limiter: limiter,
		Photos:  ph,
		BaseURL: baseURL,
		Log:     logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the success payload. The token is a bearer token
// for the Authorization header.
type authResponse struct {
	Token     string `json:"token"`
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// ServeLogin handles POST /auth/login.
//
// Unknown emails and wrong passwords both produce the same 401 so the
// endpoint does not leak which emails have accounts. Deactivated
// members get a distinct 403.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := normalize.Email(req.Email)
	if email == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if ok, reason := h.Limiter.Check(r, email); !ok {
		h.Log.Warn("login rate limited",
			zap.String("reason", reason),
			zap.String("ip", ratelimit.ClientIP(r)))
		respond.Error(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Members.GetByEmail(ctx, email)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			h.Log.Error("login: member lookup failed", zap.Error(err))
		}
		respond.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !authutil.CheckPassword(req.Password, m.PasswordHash) {
		respond.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !m.Active() {
		respond.Error(w, http.StatusForbidden, "account is deactivated")
		return
	}

	token, err := h.Tokens.Issue(m)
	if err != nil {
		h.Log.Error("login: token issue failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not complete login")
		return
	}

	h.Limiter.ResetEmail(email)
	h.Log.Info("login success", zap.String("member_id", m.ID.Hex()))

	respond.JSON(w, http.StatusOK, authResponse{
		Token:     token,
		ID:        m.ID.Hex(),
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Role:      m.Role,
		PhotoURL:  h.Photos.ResolveURL(h.BaseURL, m.PhotoRef),
	})
}
