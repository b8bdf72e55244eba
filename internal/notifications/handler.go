package notifications

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/pkg/ctxlog"
	"github.com/bissquit/guildhall/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// ChannelNotifier delivers a single event to one channel. Implemented by
// Notifier.
type ChannelNotifier interface {
	General(ctx context.Context, event Event) ChannelReport
	Personal(ctx context.Context, event Event, pasta string) ChannelReport
}

var errorMappings = []httputil.ErrorMapping{
	{Error: authz.ErrForbidden, Status: http.StatusForbidden},
}

// Handler serves the direct notification endpoints. Each request needs the
// user operation it announces; the event actor is always the caller.
type Handler struct {
	notifier  ChannelNotifier
	gate      *authz.Gate
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(notifier ChannelNotifier, gate *authz.Gate) *Handler {
	return &Handler{
		notifier:  notifier,
		gate:      gate,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers notification routes (require auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notify", func(r chi.Router) {
		r.Post("/general", h.NotifyGeneral)
		r.Post("/personal", h.NotifyPersonal)
	})
}

// Acao values accepted by /notify/general.
const (
	AcaoCreated = "criado"
	AcaoEdited  = "editado"
	AcaoDeleted = "excluido"
)

// UsuarioPayload is the user subject of a general notification.
type UsuarioPayload struct {
	ID        string `json:"id"`
	Nome      string `json:"nome" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	RoleLevel int    `json:"role_level"`
	Discord   string `json:"discord"`
	Passaport string `json:"passaport"`
}

// GeneralRequest represents the request body for POST /notify/general.
type GeneralRequest struct {
	Acao       string         `json:"acao" validate:"required,oneof=criado editado excluido"`
	Autor      string         `json:"autor"`
	Usuario    UsuarioPayload `json:"usuario"`
	Alteracoes []FieldChange  `json:"alteracoes" validate:"omitempty,dive"`
}

// PersonalRequest represents the request body for POST /notify/personal.
type PersonalRequest struct {
	Pasta     string `json:"pasta" validate:"required,url"`
	Autor     string `json:"autor"`
	Nome      string `json:"nome" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Senha     string `json:"senha" validate:"required"`
	Discord   string `json:"discord"`
	Passaport string `json:"passaport"`
}

// NotifyResponse is the body returned by the notify endpoints.
type NotifyResponse struct {
	OK     bool          `json:"ok"`
	Result ChannelReport `json:"result"`
}

// NotifyGeneral handles POST /notify/general.
func (h *Handler) NotifyGeneral(w http.ResponseWriter, r *http.Request) {
	var req GeneralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	actor, ok := h.authorize(w, r, generalOperation(req.Acao))
	if !ok {
		return
	}

	writeReport(w, r, h.notifier.General(r.Context(), req.event(actor)))
}

// NotifyPersonal handles POST /notify/personal.
func (h *Handler) NotifyPersonal(w http.ResponseWriter, r *http.Request) {
	var req PersonalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	actor, ok := h.authorize(w, r, authz.OpCreateUser)
	if !ok {
		return
	}

	event := UserCreated{
		Meta: NewMeta(actor),
		User: UserInfo{
			Name:     req.Nome,
			Email:    req.Email,
			Discord:  req.Discord,
			Passport: req.Passaport,
		},
		Password: req.Senha,
	}

	writeReport(w, r, h.notifier.Personal(r.Context(), event, req.Pasta))
}

// writeReport writes a channel report as the response of a notify request.
// A report where every endpoint failed becomes 502.
func writeReport(w http.ResponseWriter, r *http.Request, report ChannelReport) {
	if report.AllFailed() {
		ctxlog.FromContext(r.Context()).Warn("notification failed on every endpoint",
			"channel", report.Channel,
			"endpoints", len(report.Result),
		)
		httputil.Error(w, http.StatusBadGateway, ErrDeliveryFailed.Error())
		return
	}

	httputil.JSON(w, http.StatusOK, NotifyResponse{OK: true, Result: report.Redacted()})
}

// authorize checks the caller may perform op and returns the name the event
// is stamped with. The autor field of the body is never trusted.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, op authz.Operation) (string, bool) {
	principal, ok := httputil.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}

	if err := h.gate.Authorize(principal.Level, op); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return "", false
	}

	if principal.Name != "" {
		return principal.Name, true
	}
	return principal.UserID, true
}

func generalOperation(acao string) authz.Operation {
	switch acao {
	case AcaoEdited:
		return authz.OpEditUser
	case AcaoDeleted:
		return authz.OpDeleteUser
	default:
		return authz.OpCreateUser
	}
}

func (req GeneralRequest) event(actor string) Event {
	meta := NewMeta(actor)
	user := UserInfo{
		ID:        req.Usuario.ID,
		Name:      req.Usuario.Nome,
		Email:     req.Usuario.Email,
		RoleLevel: req.Usuario.RoleLevel,
		Discord:   req.Usuario.Discord,
		Passport:  req.Usuario.Passaport,
	}

	switch req.Acao {
	case AcaoEdited:
		return UserEdited{Meta: meta, User: user, Changes: req.Alteracoes}
	case AcaoDeleted:
		return UserDeleted{Meta: meta, User: user}
	default:
		return UserCreated{Meta: meta, User: user}
	}
}
