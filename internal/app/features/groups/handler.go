package groups

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/unestilodevida/cellhub/internal/app/features/shared/respond"
	"github.com/unestilodevida/cellhub/internal/app/store/groupassign"
	groupstore "github.com/unestilodevida/cellhub/internal/app/store/groups"
	"github.com/unestilodevida/cellhub/internal/app/system/photos"
	"github.com/unestilodevida/cellhub/internal/app/system/qr"
	"github.com/unestilodevida/cellhub/internal/app/system/timeouts"
	"github.com/unestilodevida/cellhub/internal/app/system/whatsapp"
	"github.com/unestilodevida/cellhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the group management endpoints.
type Handler struct {
	Groups   *groupstore.Store
	Assign   *groupassign.Store
	Photos   *photos.Store
	BaseURL  string
	Log      *zap.Logger
	sanitize *bluemonday.Policy
}

// NewHandler creates a new groups handler.
func NewHandler(groups *groupstore.Store, assign *groupassign.Store, ph *photos.Store, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		Groups:   groups,
		Assign:   assign,
		Photos:   ph,
		BaseURL:  baseURL,
		Log:      logger,
		sanitize: bluemonday.StrictPolicy(),
	}
}

// memberSummary is the compact member shape embedded in group responses.
type memberSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

type groupResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Weekday      string         `json:"weekday"`
	Gender       string         `json:"gender"`
	StartTime    string         `json:"start_time"`
	Address      string         `json:"address"`
	Latitude     *float64       `json:"latitude,omitempty"`
	Longitude    *float64       `json:"longitude,omitempty"`
	Description  string         `json:"description,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	WhatsAppLink string         `json:"whatsapp_link,omitempty"`
	WhatsAppQR   string         `json:"whatsapp_qr,omitempty"`
	Active       bool           `json:"active"`
	Leader       *memberSummary `json:"leader,omitempty"`
	Assistant    *memberSummary `json:"assistant,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (h *Handler) summarize(m *models.Member) *memberSummary {
	if m == nil {
		return nil
	}
	return &memberSummary{
		ID:        m.ID.Hex(),
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Phone:     m.Phone,
		PhotoURL:  h.Photos.ResolveURL(h.BaseURL, m.PhotoRef),
	}
}

func (h *Handler) toResponse(g *models.Group, leader, assistant *models.Member) groupResponse {
	return groupResponse{
		ID:           g.ID.Hex(),
		Name:         g.Name,
		Weekday:      g.Weekday,
		Gender:       g.Gender,
		StartTime:    g.StartTime,
		Address:      g.Address,
		Latitude:     g.Latitude,
		Longitude:    g.Longitude,
		Description:  g.Description,
		Phone:        g.Phone,
		WhatsAppLink: g.WhatsAppLink,
		WhatsAppQR:   g.WhatsAppQR,
		Active:       g.Active(),
		Leader:       h.summarize(leader),
		Assistant:    h.summarize(assistant),
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

// createRequest is the JSON body for group creation. AssistantID may
// be empty or "0", both meaning no assistant; clients built against
// the old numeric-id API still send the zero sentinel.
type createRequest struct {
	Name        string   `json:"name"`
	Weekday     string   `json:"weekday"`
	Gender      string   `json:"gender"`
	StartTime   string   `json:"start_time"`
	Address     string   `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Description string   `json:"description"`
	Phone       string   `json:"phone"`
	LeaderID    string   `json:"leader_id"`
	AssistantID string   `json:"assistant_id"`
}

func assistantID(raw string) (*primitive.ObjectID, error) {
	if raw == "" || raw == "0" {
		return nil, nil
	}
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, err
	}
	return &oid, nil
}

func validStartTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// ServeCreate handles POST /api/groups. A group cannot exist without
// a leader, so the leader assignment is part of creation; if it fails
// the group document is rolled back.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Weekday == "" || req.Gender == "" || req.StartTime == "" || req.Address == "" {
		respond.Error(w, http.StatusBadRequest, "name, weekday, gender, start_time and address are required")
		return
	}
	if !validStartTime(req.StartTime) {
		respond.Error(w, http.StatusBadRequest, "start_time must be HH:MM in 24-hour format")
		return
	}

	leaderID, err := primitive.ObjectIDFromHex(req.LeaderID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "leader_id is required")
		return
	}
	asstID, err := assistantID(req.AssistantID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid assistant_id")
		return
	}

	g := models.Group{
		Name:        req.Name,
		Weekday:     req.Weekday,
		Gender:      req.Gender,
		StartTime:   req.StartTime,
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Description: h.sanitize.Sanitize(req.Description),
		Phone:       req.Phone,
	}
	g.WhatsAppLink = whatsapp.Link(g.Phone, g.Name)
	if g.WhatsAppLink != "" {
		if code, qerr := qr.DataURI(g.WhatsAppLink); qerr == nil {
			g.WhatsAppQR = code
		} else {
			h.Log.Warn("create group: qr encode failed", zap.Error(qerr))
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	created, err := h.Groups.Create(ctx, g)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Assign.AssignLeader(ctx, created.ID, leaderID); err != nil {
		h.rollbackCreate(ctx, created.ID)
		h.assignError(w, err)
		return
	}
	if asstID != nil {
		if err := h.Assign.AssignAssistant(ctx, created.ID, asstID); err != nil {
			h.rollbackCreate(ctx, created.ID)
			h.assignError(w, err)
			return
		}
	}

	final, err := h.Groups.GetByID(ctx, created.ID)
	if err != nil {
		h.Log.Error("create group: reload failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not load group")
		return
	}

	h.Log.Info("group created",
		zap.String("group_id", final.ID.Hex()),
		zap.String("name", final.Name))
	h.respondWithDetail(ctx, w, http.StatusCreated, final)
}

// rollbackCreate retires a group whose leader assignment failed. The
// document never reached a client, and deactivated groups are
// invisible to every read path.
func (h *Handler) rollbackCreate(ctx context.Context, id primitive.ObjectID) {
	if err := h.Assign.DeactivateGroup(ctx, id); err != nil {
		h.Log.Warn("create group: rollback failed", zap.Error(err), zap.String("group_id", id.Hex()))
	}
}

func (h *Handler) assignError(w http.ResponseWriter, err error) {
	var assigned *groupassign.AlreadyAssignedError
	switch {
	case errors.As(err, &assigned):
		respond.Error(w, http.StatusConflict, assigned.Error())
	case err == groupassign.ErrMemberNotFound:
		respond.Error(w, http.StatusNotFound, "member not found")
	case err == groupassign.ErrMemberDeactivated:
		respond.Error(w, http.StatusConflict, "member is deactivated")
	case err == groupassign.ErrGroupNotFound:
		respond.Error(w, http.StatusNotFound, "group not found")
	case err == groupassign.ErrGroupDeactivated:
		respond.Error(w, http.StatusConflict, "group is deactivated")
	case err == groupassign.ErrMemberLeadsGroup:
		respond.Error(w, http.StatusConflict, "member already leads this group")
	case err == groupassign.ErrSlotConflict:
		respond.Error(w, http.StatusConflict, "group assignment changed, please retry")
	default:
		h.Log.Error("slot assignment failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not update assignment")
	}
}

func (h *Handler) respondWithDetail(ctx context.Context, w http.ResponseWriter, status int, g *models.Group) {
	var leader, assistant *models.Member
	details, err := h.Assign.ListActiveDetailed(ctx)
	if err == nil {
		for i := range details {
			if details[i].Group.ID == g.ID {
				leader = details[i].Leader
				assistant = details[i].Assistant
				break
			}
		}
	}
	respond.JSON(w, status, h.toResponse(g, leader, assistant))
}

// ServeList handles GET /api/groups. Only active groups are listed;
// deactivated ones are history, not inventory.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	details, err := h.Assign.ListActiveDetailed(ctx)
	if err != nil {
		h.Log.Error("list groups failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not list groups")
		return
	}

	out := make([]groupResponse, 0, len(details))
	for i := range details {
		out = append(out, h.toResponse(&details[i].Group, details[i].Leader, details[i].Assistant))
	}
	respond.JSON(w, http.StatusOK, out)
}

// ServeGet handles GET /api/groups/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Groups.GetByID(ctx, oid)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			respond.Error(w, http.StatusNotFound, "group not found")
			return
		}
		h.Log.Error("get group failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not load group")
		return
	}
	h.respondWithDetail(ctx, w, http.StatusOK, g)
}

// updateRequest is the JSON body for partial group updates. Absent
// fields keep their stored values; assistant_id "0" or "" clears the
// assistant slot.
type updateRequest struct {
	Name        *string  `json:"name"`
	Weekday     *string  `json:"weekday"`
	Gender      *string  `json:"gender"`
	StartTime   *string  `json:"start_time"`
	Address     *string  `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Description *string  `json:"description"`
	Phone       *string  `json:"phone"`
	LeaderID    *string  `json:"leader_id"`
	AssistantID *string  `json:"assistant_id"`
}

// ServeUpdate handles PUT /api/groups/{id}.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StartTime != nil && !validStartTime(*req.StartTime) {
		respond.Error(w, http.StatusBadRequest, "start_time must be HH:MM in 24-hour format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	cur, err := h.Groups.GetByID(ctx, oid)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			respond.Error(w, http.StatusNotFound, "group not found")
			return
		}
		h.Log.Error("update group: load failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not load group")
		return
	}
	if !cur.Active() {
		respond.Error(w, http.StatusConflict, "group is deactivated")
		return
	}

	upd := groupstore.Update{
		Name:      req.Name,
		Weekday:   req.Weekday,
		Gender:    req.Gender,
		StartTime: req.StartTime,
		Address:   req.Address,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Phone:     req.Phone,
	}
	if req.Description != nil {
		clean := h.sanitize.Sanitize(*req.Description)
		upd.Description = &clean
	}

	// Phone or name changes invalidate the derived WhatsApp link.
	if req.Phone != nil || req.Name != nil {
		phone := cur.Phone
		if req.Phone != nil {
			phone = *req.Phone
		}
		name := cur.Name
		if req.Name != nil {
			name = *req.Name
		}
		link := whatsapp.Link(phone, name)
		upd.WhatsAppLink = &link

		code := ""
		if link != "" {
			if c, qerr := qr.DataURI(link); qerr == nil {
				code = c
			} else {
				h.Log.Warn("update group: qr encode failed", zap.Error(qerr))
			}
		}
		upd.WhatsAppQR = &code
	}

	if err := h.Groups.Update(ctx, oid, upd); err != nil {
		if err == mongo.ErrNoDocuments {
			respond.Error(w, http.StatusNotFound, "group not found")
			return
		}
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.LeaderID != nil {
		leaderID, perr := primitive.ObjectIDFromHex(*req.LeaderID)
		if perr != nil {
			respond.Error(w, http.StatusBadRequest, "invalid leader_id")
			return
		}
		if err := h.Assign.AssignLeader(ctx, oid, leaderID); err != nil {
			h.assignError(w, err)
			return
		}
	}
	if req.AssistantID != nil {
		asstID, perr := assistantID(*req.AssistantID)
		if perr != nil {
			respond.Error(w, http.StatusBadRequest, "invalid assistant_id")
			return
		}
		if err := h.Assign.AssignAssistant(ctx, oid, asstID); err != nil {
			h.assignError(w, err)
			return
		}
	}

	g, err := h.Groups.GetByID(ctx, oid)
	if err != nil {
		h.Log.Error("update group: reload failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not load group")
		return
	}
	h.respondWithDetail(ctx, w, http.StatusOK, g)
}

// ServeDeactivate handles DELETE /api/groups/{id}. Deactivation frees
// the leader and assistant for reassignment.
func (h *Handler) ServeDeactivate(w http.ResponseWriter, r *http.Request) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	switch err := h.Assign.DeactivateGroup(ctx, oid); err {
	case nil:
		h.Log.Info("group deactivated", zap.String("group_id", oid.Hex()))
		w.WriteHeader(http.StatusNoContent)
	case groupassign.ErrGroupNotFound:
		respond.Error(w, http.StatusNotFound, "group not found")
	default:
		h.Log.Error("deactivate group failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not deactivate group")
	}
}

// ServeMemberAssignment handles GET /api/groups/member-assignment/{id}.
// It reports the name of the active group where the member holds a
// leader or assistant slot, or null when the member is unassigned.
func (h *Handler) ServeMemberAssignment(w http.ResponseWriter, r *http.Request) {
	memberID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid member id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	name, err := h.Assign.ActiveGroupName(ctx, memberID)
	if err != nil {
		h.Log.Error("member assignment lookup failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "could not look up assignment")
		return
	}

	var out *string
	if name != "" {
		out = &name
	}
	respond.JSON(w, http.StatusOK, map[string]*string{"group_name": out})
}

// ServeWeekdays handles GET /api/groups/weekdays.
func (h *Handler) ServeWeekdays(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, models.Weekdays)
}

// ServeGenders handles GET /api/groups/genders.
func (h *Handler) ServeGenders(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, models.Genders)
}
