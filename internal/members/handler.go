package members

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
	"github.com/bissquit/guildhall/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrUserNotFound, Status: http.StatusNotFound},
	{Error: ErrEmailExists, Status: http.StatusConflict},
	{Error: ErrInvalidRoleLevel, Status: http.StatusBadRequest},
	{Error: ErrCannotDeleteSelf, Status: http.StatusConflict},
	{Error: cursor.ErrInvalid, Status: http.StatusBadRequest},
	{Error: authz.ErrForbidden, Status: http.StatusForbidden},
}

// Handler handles HTTP requests for the members module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new members handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers member routes (require auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/members", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/password", h.ResetPassword)
	})
}

// CreateRequest represents request body for creating a member.
type CreateRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	RoleLevel int    `json:"role_level" validate:"required,min=1"`
	Discord   string `json:"discord" validate:"max=100"`
	Passport  string `json:"passport" validate:"max=50"`
	Pasta     string `json:"pasta" validate:"omitempty,url"`
	Locker    string `json:"locker" validate:"max=50"`
}

// UpdateRequest represents request body for updating a member.
type UpdateRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=2,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	RoleLevel *int    `json:"role_level" validate:"omitempty,min=1"`
	Discord   *string `json:"discord" validate:"omitempty,max=100"`
	Passport  *string `json:"passport" validate:"omitempty,max=50"`
	Pasta     *string `json:"pasta" validate:"omitempty,url"`
	Locker    *string `json:"locker" validate:"omitempty,max=50"`
}

// PasswordRequest represents request body for a password reset.
type PasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

// UserResponse is a member with its role presentation.
type UserResponse struct {
	domain.User
	Role domain.RoleDisplay `json:"role"`
}

func newUserResponse(u domain.User) UserResponse {
	return UserResponse{User: u, Role: u.Role()}
}

// List handles GET /members.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	input := ListInput{Cursor: r.URL.Query().Get("cursor")}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		input.Limit = limit
	}
	if v := r.URL.Query().Get("role_level"); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid role_level")
			return
		}
		input.RoleLevel = &level
	}

	page, err := h.service.List(r.Context(), actorFrom(r), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	items := make([]UserResponse, 0, len(page.Items))
	for _, u := range page.Items {
		items = append(items, newUserResponse(u))
	}

	httputil.Success(w, http.StatusOK, cursor.Page[UserResponse]{Items: items, NextCursor: page.NextCursor})
}

// Create handles POST /members.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.Create(r.Context(), actorFrom(r), CreateInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, newUserResponse(*user))
}

// Get handles GET /members/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, newUserResponse(*user))
}

// Update handles PATCH /members/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.Update(r.Context(), actorFrom(r), chi.URLParam(r, "id"), UpdateInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, newUserResponse(*user))
}

// Delete handles DELETE /members/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword handles POST /members/{id}/password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Password); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func actorFrom(r *http.Request) authz.Actor {
	p, _ := httputil.GetPrincipal(r.Context())
	return p
}
