package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/guildhall/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	defaultUsername = "Guildhall"
	emptyValue      = "—"
)

var locale = language.BrazilianPortuguese

// RendererConfig holds message presentation settings.
type RendererConfig struct {
	Username  string
	AvatarURL string
	Footer    string
}

// Renderer turns events into webhook messages.
type Renderer struct {
	config RendererConfig
}

// NewRenderer creates a renderer.
func NewRenderer(config RendererConfig) *Renderer {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	return &Renderer{config: config}
}

// Render builds the message for an event.
func (r *Renderer) Render(event Event) Message {
	meta := event.header()

	fields := r.fields(event)
	for i := range fields {
		fields[i].Value = truncate(fields[i].Value, maxFieldValue)
	}

	embed := Embed{
		Title:  truncate(titleFor(event), maxTitle),
		Color:  ColorFor(event.Kind()),
		Author: &EmbedAuthor{Name: truncate(meta.Actor, maxAuthorName)},
		Fields: fields,
	}
	if !meta.OccurredAt.IsZero() {
		embed.Timestamp = meta.OccurredAt.UTC().Format(time.RFC3339)
	}
	if r.config.Footer != "" {
		embed.Footer = &EmbedFooter{Text: r.config.Footer}
	}

	return Message{
		Username:  r.config.Username,
		AvatarURL: r.config.AvatarURL,
		Embeds:    []Embed{embed},
	}
}

// ColorFor returns the embed color of an event kind.
func ColorFor(kind EventKind) int {
	switch kind {
	case KindUserCreated, KindActionRegistered:
		return ColorCreated
	case KindUserDeleted, KindActionDeleted:
		return ColorDeleted
	case KindUserEdited:
		return ColorEdited
	default:
		return ColorGeneric
	}
}

func titleFor(event Event) string {
	switch e := event.(type) {
	case UserCreated:
		return "👤 Usuário criado: " + e.User.Name
	case UserEdited:
		return "✏️ Usuário editado: " + e.User.Name
	case UserDeleted:
		return "🗑️ Usuário excluído: " + e.User.Name
	case ActionRegistered:
		return outcomeEmoji(e.Action.Outcome) + " Ação registrada: " + titleCase(e.Action.Name)
	case ActionDeleted:
		return "🗑️ Ação excluída: " + titleCase(e.Action.Name)
	case SaleRegistered:
		return "💰 Venda registrada: " + e.Sale.Product
	default:
		return "📋 Notificação"
	}
}

func (r *Renderer) fields(event Event) []EmbedField {
	switch e := event.(type) {
	case UserCreated:
		fields := userFields(e.User)
		if e.Password != "" {
			// Discord spoiler markup hides the value until clicked.
			fields = append(fields, EmbedField{Name: "Senha", Value: "||" + e.Password + "||", Inline: true})
		}
		return fields
	case UserEdited:
		fields := userFields(e.User)
		return append(fields, EmbedField{Name: "Alterações", Value: formatChanges(e.Changes)})
	case UserDeleted:
		return userFields(e.User)
	case ActionRegistered:
		return actionFields(e.Action)
	case ActionDeleted:
		fields := actionFields(e.Action)
		return append(fields, EmbedField{Name: "Excluída por", Value: e.Actor, Inline: true})
	case SaleRegistered:
		return saleFields(e.Sale, e.SellerName)
	default:
		return nil
	}
}

func userFields(u UserInfo) []EmbedField {
	return []EmbedField{
		{Name: "Nome", Value: valueOrDash(u.Name), Inline: true},
		{Name: "Email", Value: valueOrDash(u.Email), Inline: true},
		{Name: "Cargo", Value: domain.IconFor(u.RoleLevel) + " " + domain.LabelFor(u.RoleLevel), Inline: true},
		{Name: "Discord", Value: valueOrDash(u.Discord), Inline: true},
		{Name: "Passaporte", Value: valueOrDash(u.Passport), Inline: true},
	}
}

func actionFields(a ActionInfo) []EmbedField {
	fields := []EmbedField{
		{Name: "Resultado", Value: outcomeLabel(a.Outcome), Inline: true},
	}
	if a.Amount != nil {
		fields = append(fields, EmbedField{Name: "Valor", Value: formatMoney(*a.Amount), Inline: true})
	}
	participants := emptyValue
	if len(a.Participants) > 0 {
		participants = strings.Join(a.Participants, ", ")
	}
	fields = append(fields, EmbedField{
		Name:  fmt.Sprintf("Participantes (%d)", len(a.Participants)),
		Value: participants,
	})
	return fields
}

func saleFields(s domain.Sale, sellerName string) []EmbedField {
	seller := s.UserID
	if sellerName != "" {
		seller = sellerName
	}
	return []EmbedField{
		{Name: "Vendedor", Value: valueOrDash(seller), Inline: true},
		{Name: "Cargo", Value: domain.IconFor(s.RoleLevel) + " " + domain.LabelFor(s.RoleLevel), Inline: true},
		{Name: "Produto", Value: valueOrDash(s.Product), Inline: true},
		{Name: "Quantidade", Value: formatNumber(s.Quantity), Inline: true},
		{Name: "Valor", Value: formatMoney(s.Value), Inline: true},
		{Name: "Cadastrado por", Value: valueOrDash(s.RegisteredBy), Inline: true},
	}
}

func formatChanges(changes []FieldChange) string {
	if len(changes) == 0 {
		return emptyValue
	}
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		lines = append(lines, fmt.Sprintf("**%s**: %s → %s", c.Field, valueOrDash(c.From), valueOrDash(c.To)))
	}
	return strings.Join(lines, "\n")
}

func formatMoney(v float64) string {
	return message.NewPrinter(locale).Sprintf("R$ %.2f", v)
}

func formatNumber(v float64) string {
	return message.NewPrinter(locale).Sprintf("%v", v)
}

func titleCase(s string) string {
	// cases.Caser keeps state, so one per call.
	return cases.Title(locale).String(s)
}

func outcomeLabel(o domain.Outcome) string {
	switch o {
	case domain.OutcomeWin:
		return "✅ Vitória"
	case domain.OutcomeLose:
		return "❌ Derrota"
	default:
		return string(o)
	}
}

func outcomeEmoji(o domain.Outcome) string {
	if o == domain.OutcomeWin {
		return "🏆"
	}
	return "⚔️"
}

func valueOrDash(s string) string {
	if s == "" {
		return emptyValue
	}
	return s
}

// truncate cuts s to at most limit characters, ending with an ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
