package actions

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
	{Error: ErrActionNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidOutcome, Status: http.StatusBadRequest},
	{Error: ErrAmountNotAllowed, Status: http.StatusBadRequest},
	{Error: ErrNegativeAmount, Status: http.StatusBadRequest},
	{Error: ErrUnknownParticipants, Status: http.StatusBadRequest},
	{Error: ErrAlreadyDeleted, Status: http.StatusConflict},
	{Error: cursor.ErrInvalid, Status: http.StatusBadRequest},
	{Error: authz.ErrForbidden, Status: http.StatusForbidden},
}

// Handler handles HTTP requests for the actions module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new actions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers action routes (require auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/actions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Record)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
	})
}

// RecordRequest represents request body for recording an action.
type RecordRequest struct {
	Name         string   `json:"name" validate:"required,min=2,max=200"`
	Outcome      string   `json:"outcome" validate:"required,oneof=win lose"`
	Amount       *float64 `json:"amount"`
	Participants []string `json:"participants" validate:"max=100,dive,required"`
}

// Record handles POST /actions.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	action, err := h.service.Record(r.Context(), actorFrom(r), RecordInput{
		Name:         req.Name,
		Outcome:      domain.Outcome(req.Outcome),
		Amount:       req.Amount,
		Participants: req.Participants,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, action)
}

// Get handles GET /actions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	action, err := h.service.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, action)
}

// List handles GET /actions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ListInput{
		ParticipantID:  q.Get("participant"),
		IncludeDeleted: q.Get("include_deleted") == "true",
		Cursor:         q.Get("cursor"),
	}

	if v := q.Get("outcome"); v != "" {
		outcome := domain.Outcome(v)
		input.Outcome = &outcome
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		input.Limit = limit
	}

	page, err := h.service.List(r.Context(), actorFrom(r), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, page)
}

// Delete handles DELETE /actions/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func actorFrom(r *http.Request) authz.Actor {
	p, _ := httputil.GetPrincipal(r.Context())
	return p
}
