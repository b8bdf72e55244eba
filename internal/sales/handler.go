package sales

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/notifications"
	"github.com/bissquit/guildhall/internal/pkg/ctxlog"
	"github.com/bissquit/guildhall/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrInvalidSale, Status: http.StatusBadRequest},
	{Error: authz.ErrForbidden, Status: http.StatusForbidden},
}

// Handler handles HTTP requests for the sales module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new sales handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers sale routes (require auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sales", h.Register)
}

// RegisterRequest represents request body for registering a sale.
// Pointer fields distinguish absent values from zero.
type RegisterRequest struct {
	CadastradoPor string   `json:"cadastradoPor" validate:"required"`
	UserID        string   `json:"userId" validate:"required"`
	RoleLevel     *int     `json:"roleLevel" validate:"required"`
	Produto       string   `json:"produto" validate:"required,max=200"`
	Quantidade    *float64 `json:"quantidade" validate:"required,gt=0"`
	Valor         *float64 `json:"valor" validate:"required,gte=0"`
	CreatedAt     string   `json:"createdAt" validate:"required"`
}

// Register handles POST /sales.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	createdAt, err := time.Parse(time.RFC3339, req.CreatedAt)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "createdAt must be an RFC 3339 timestamp")
		return
	}

	report, err := h.service.Register(r.Context(), actorFrom(r), domain.Sale{
		RegisteredBy: strings.TrimSpace(req.CadastradoPor),
		UserID:       req.UserID,
		RoleLevel:    *req.RoleLevel,
		Product:      strings.TrimSpace(req.Produto),
		Quantity:     *req.Quantidade,
		Value:        *req.Valor,
		CreatedAt:    createdAt,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	// The sale is accepted even when no webhook took it; the per-endpoint
	// outcomes tell the caller what was delivered.
	if report.AllFailed() {
		ctxlog.FromContext(r.Context()).Warn("sale announcement failed on every endpoint",
			"user_id", req.UserID,
			"endpoints", len(report.Result),
		)
	}

	httputil.JSON(w, http.StatusOK, notifications.NotifyResponse{OK: true, Result: report.Redacted()})
}

func actorFrom(r *http.Request) authz.Actor {
	p, _ := httputil.GetPrincipal(r.Context())
	return p
}
