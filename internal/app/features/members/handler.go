package members

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/unestilodevida/cellhub/internal/app/features/shared/respond"
	"github.com/unestilodevida/cellhub/internal/app/store/groupassign"
	memberstore "github.com/unestilodevida/cellhub/internal/app/store/members"
	"github.com/unestilodevida/cellhub/internal/app/system/authutil"
	"github.com/unestilodevida/cellhub/internal/app/system/normalize"
	"github.com/unestilodevida/cellhub/internal/app/system/photos"
	"github.com/unestilodevida/cellhub/internal/app/system/timeouts"
	"github.com/unestilodevida/cellhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const maxUploadBytes = 12 << 20

// Handler serves the member management endpoints.
type Handler struct {
	Members *memberstore.Store
	Assign  *groupassign.Store
	Photos  *photos.Store
	BaseURL string
	Log     *zap.Logger
}

// NewHandler creates a new members handler.
func NewHandler(members *memberstore.Store, assign *groupassign.Store, ph *photos.Store, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		Members: members,
		Assign:  assign,
		Photos:  ph,
		BaseURL: baseURL,
		Log:     logger,
	}
}

// memberResponse is the wire shape for a member. The password hash
// and raw photo reference never leave the server.
type memberResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Active    bool      `json:"active"`
	GroupName string    `json:"group_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Handler) toResponse(m *models.Member) memberResponse {
	return memberResponse{
		ID:        m.ID.Hex(),
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Phone:     m.Phone,
		Role:      m.Role,
		PhotoURL:  h.Photos.ResolveURL(h.BaseURL, m.PhotoRef),
		Active:    m.Active(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (h *Handler) idParam(r *http.Request) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	return oid, err == nil
}

// ServeCreate handles POST /api/members.
//
// Accepts multipart form data so a profile photo can be uploaded in
// the same request. The photo part is optional.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	m := models.Member{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Email:     r.FormValue("email"),
		Phone:     r.FormValue("phone"),
		Role:      r.FormValue("role"),
	}
	password := r.FormValue("password")

	if m.FirstName == "" || m.LastName == "" || m.Email == "" || m.Role == "" {
		respond.Error(w, http.StatusBadRequest, "first_name, last_name, email and role are required")
		return
	}
	if !models.ValidRole(normalize.Role(m.Role)) {
		respond.Error(w, http.StatusBadRequest, `role must be "admin", "leader" or "assistant"`)
		return
	}
	if err := authutil.ValidatePassword(password); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		h.Log.Error("create member: hash password failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not create member")
		return
	}
	m.PasswordHash = hash

	if file, header, ferr := r.FormFile("photo"); ferr == nil {
		defer file.Close()
		ref, serr := h.Photos.Save(file, header)
		if serr != nil {
			respond.Error(w, http.StatusBadRequest, photoErrorMessage(serr))
			return
		}
		m.PhotoRef = ref
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	created, err := h.Members.Create(ctx, m)
	if err != nil {
		if m.PhotoRef != "" {
			_ = h.Photos.Remove(m.PhotoRef)
		}
		if err == memberstore.ErrDuplicateEmail {
			respond.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Error("create member failed", zap.Error(err))
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Log.Info("member created",
		zap.String("member_id", created.ID.Hex()),
		zap.String("role", created.Role))
	respond.JSON(w, http.StatusCreated, h.toResponse(&created))
}

// ServeList handles GET /api/members. The optional ?active=true query
// restricts the result to active members.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	activeOnly := normalize.QueryParam(r.URL.Query().Get("active")) == "true"

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Members.List(ctx, activeOnly)
	if err != nil {
		h.Log.Error("list members failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not list members")
		return
	}

	out := make([]memberResponse, 0, len(list))
	for i := range list {
		out = append(out, h.toResponse(&list[i]))
	}
	respond.JSON(w, http.StatusOK, out)
}

// ServeGet handles GET /api/members/{id}. The response names the
// active group holding the member, when there is one.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	oid, ok := h.idParam(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid member id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Members.GetByID(ctx, oid)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			respond.Error(w, http.StatusNotFound, "member not found")
			return
		}
		h.Log.Error("get member failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not load member")
		return
	}

	resp := h.toResponse(m)
	if name, gerr := h.Assign.ActiveGroupName(ctx, m.ID); gerr == nil {
		resp.GroupName = name
	}
	respond.JSON(w, http.StatusOK, resp)
}

// ServeUpdate handles PUT /api/members/{id}. Accepts multipart form
// data; only the fields present in the form are changed.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	oid, ok := h.idParam(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid member id")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var upd memberstore.Update
	form := r.MultipartForm.Value
	if v, ok := formValue(form, "first_name"); ok {
		upd.FirstName = &v
	}
	if v, ok := formValue(form, "last_name"); ok {
		upd.LastName = &v
	}
	if v, ok := formValue(form, "email"); ok {
		upd.Email = &v
	}
	if v, ok := formValue(form, "phone"); ok {
		upd.Phone = &v
	}
	if v, ok := formValue(form, "role"); ok {
		if !models.ValidRole(normalize.Role(v)) {
			respond.Error(w, http.StatusBadRequest, `role must be "admin", "leader" or "assistant"`)
			return
		}
		upd.Role = &v
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var oldPhoto string
	if file, header, ferr := r.FormFile("photo"); ferr == nil {
		defer file.Close()
		ref, serr := h.Photos.Save(file, header)
		if serr != nil {
			respond.Error(w, http.StatusBadRequest, photoErrorMessage(serr))
			return
		}
		upd.PhotoRef = &ref

		if cur, cerr := h.Members.GetByID(ctx, oid); cerr == nil {
			oldPhoto = cur.PhotoRef
		}
	}

	if err := h.Members.Update(ctx, oid, upd); err != nil {
		if upd.PhotoRef != nil {
			_ = h.Photos.Remove(*upd.PhotoRef)
		}
		switch {
		case err == mongo.ErrNoDocuments:
			respond.Error(w, http.StatusNotFound, "member not found")
		case err == memberstore.ErrDuplicateEmail:
			respond.Error(w, http.StatusConflict, err.Error())
		default:
			h.Log.Error("update member failed", zap.Error(err))
			respond.Error(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	if oldPhoto != "" {
		_ = h.Photos.Remove(oldPhoto)
	}

	m, err := h.Members.GetByID(ctx, oid)
	if err != nil {
		h.Log.Error("reload member failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not load member")
		return
	}
	respond.JSON(w, http.StatusOK, h.toResponse(m))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ServeChangePassword handles POST /api/members/{id}/password. The
// caller must prove knowledge of the current password.
func (h *Handler) ServeChangePassword(w http.ResponseWriter, r *http.Request) {
	oid, ok := h.idParam(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Members.GetByID(ctx, oid)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			respond.Error(w, http.StatusNotFound, "member not found")
			return
		}
		h.Log.Error("change password: load member failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not change password")
		return
	}

	if !authutil.CheckPassword(req.CurrentPassword, m.PasswordHash) {
		respond.Error(w, http.StatusForbidden, "current password is incorrect")
		return
	}
	if err := authutil.ValidatePassword(req.NewPassword); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := authutil.HashPassword(req.NewPassword)
	if err != nil {
		h.Log.Error("change password: hash failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not change password")
		return
	}
	if err := h.Members.UpdatePassword(ctx, oid, hash); err != nil {
		h.Log.Error("change password: update failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not change password")
		return
	}

	h.Log.Info("password changed", zap.String("member_id", oid.Hex()))
	w.WriteHeader(http.StatusNoContent)
}

// ServeDeactivate handles DELETE /api/members/{id}. Members holding a
// slot in an active group cannot be deactivated; the response names
// the blocking group.
func (h *Handler) ServeDeactivate(w http.ResponseWriter, r *http.Request) {
	oid, ok := h.idParam(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid member id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	err := h.Assign.DeactivateMember(ctx, oid)
	var held *groupassign.MemberAssignedError
	switch {
	case err == nil:
		h.Log.Info("member deactivated", zap.String("member_id", oid.Hex()))
		w.WriteHeader(http.StatusNoContent)
	case errors.As(err, &held):
		respond.Error(w, http.StatusConflict, held.Error())
	case err == groupassign.ErrMemberNotFound:
		respond.Error(w, http.StatusNotFound, "member not found")
	default:
		h.Log.Error("deactivate member failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not deactivate member")
	}
}

// ServeRoles handles GET /api/members/roles.
func (h *Handler) ServeRoles(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, models.Roles)
}

// ServeExists handles GET /api/members/exists?email=...
func (h *Handler) ServeExists(w http.ResponseWriter, r *http.Request) {
	email := normalize.Email(r.URL.Query().Get("email"))
	if email == "" {
		respond.Error(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	exists, err := h.Members.EmailExists(ctx, email)
	if err != nil {
		h.Log.Error("email exists check failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not check email")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// ServeLeaders handles GET /api/members/leaders.
func (h *Handler) ServeLeaders(w http.ResponseWriter, r *http.Request) {
	h.listByRole(w, r, models.RoleLeader)
}

// ServeAssistants handles GET /api/members/assistants.
func (h *Handler) ServeAssistants(w http.ResponseWriter, r *http.Request) {
	h.listByRole(w, r, models.RoleAssistant)
}

func (h *Handler) listByRole(w http.ResponseWriter, r *http.Request, role string) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Members.ListByRole(ctx, role)
	if err != nil {
		h.Log.Error("list members by role failed", zap.Error(err), zap.String("role", role))
		respond.Error(w, http.StatusInternalServerError, "could not list members")
		return
	}

	out := make([]memberResponse, 0, len(list))
	for i := range list {
		out = append(out, h.toResponse(&list[i]))
	}
	respond.JSON(w, http.StatusOK, out)
}

func formValue(form map[string][]string, key string) (string, bool) {
	vs, ok := form[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func photoErrorMessage(err error) string {
	switch err {
	case photos.ErrNotImage:
		return "photo must be an image file"
	case photos.ErrTooLarge:
		return "photo exceeds the size limit"
	}
	return "could not store photo"
}
