package goals

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
	"github.com/bissquit/guildhall/internal/pkg/httputil"
	"github.com/bissquit/guildhall/internal/proofs"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// multipartOverhead covers form boundaries and headers around the file.
const multipartOverhead = 1 << 20

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrGoalNotFound, Status: http.StatusNotFound},
	{Error: ErrUserNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidWeek, Status: http.StatusBadRequest},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrMissingFile, Status: http.StatusBadRequest},
	{Error: proofs.ErrNotConfigured, Status: http.StatusServiceUnavailable, Message: "proof storage is not configured"},
	{Error: proofs.ErrEmptyFile, Status: http.StatusBadRequest},
	{Error: proofs.ErrTooLarge, Status: http.StatusRequestEntityTooLarge},
	{Error: proofs.ErrUnsupportedType, Status: http.StatusUnsupportedMediaType},
	{Error: proofs.ErrUploadFailed, Status: http.StatusBadGateway, Message: "proof upload failed"},
	{Error: cursor.ErrInvalid, Status: http.StatusBadRequest},
	{Error: authz.ErrForbidden, Status: http.StatusForbidden},
}

// Handler handles HTTP requests for the goals module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new goals handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers goal routes (require auth).
//
// PUT /goals/{id}/{week} takes a user id, the other /goals/{id} routes a
// goal id.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/goals", func(r chi.Router) {
		r.Get("/", h.ListByWeek)
		r.Get("/{id}", h.Get)
		r.Put("/{id}/{week}", h.Set)
		r.Post("/{id}/proof", h.AttachProof)
	})
	r.Get("/members/{id}/goals", h.ListForUser)
}

// SetRequest represents request body for setting a goal status.
type SetRequest struct {
	Status string `json:"status" validate:"required,oneof=not_paid free_goal confirmed unknown"`
}

// Set handles PUT /goals/{userID}/{week}.
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	goal, err := h.service.Set(r.Context(), actorFrom(r),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "week"),
		domain.GoalStatus(req.Status),
	)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, goal)
}

// Get handles GET /goals/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	goal, err := h.service.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, goal)
}

// ListByWeek handles GET /goals?week=. The current week is used when week
// is omitted.
func (h *Handler) ListByWeek(w http.ResponseWriter, r *http.Request) {
	input, ok := listInput(w, r)
	if !ok {
		return
	}

	week := r.URL.Query().Get("week")
	if week == "" {
		week = string(h.service.CurrentWeek())
	}

	page, err := h.service.ListByWeek(r.Context(), actorFrom(r), week, input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, page)
}

// ListForUser handles GET /members/{id}/goals.
func (h *Handler) ListForUser(w http.ResponseWriter, r *http.Request) {
	input, ok := listInput(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListForUser(r.Context(), actorFrom(r), chi.URLParam(r, "id"), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, page)
}

// AttachProof handles POST /goals/{id}/proof with a multipart "file" field.
func (h *Handler) AttachProof(w http.ResponseWriter, r *http.Request) {
	limit := h.service.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, proofs.ErrTooLarge.Error())
			return
		}
		httputil.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.HandleError(r.Context(), w, ErrMissingFile, errorMappings)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	goal, err := h.service.AttachProof(r.Context(), actorFrom(r), chi.URLParam(r, "id"), Upload{
		Data:        data,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, goal)
}

func listInput(w http.ResponseWriter, r *http.Request) (ListInput, bool) {
	q := r.URL.Query()
	input := ListInput{Cursor: q.Get("cursor")}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return ListInput{}, false
		}
		input.Limit = limit
	}
	return input, true
}

func actorFrom(r *http.Request) authz.Actor {
	p, _ := httputil.GetPrincipal(r.Context())
	return p
}
