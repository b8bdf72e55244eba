// Package sales announces registered sales. Sales are not stored.
package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/notifications"
	"github.com/bissquit/guildhall/internal/pkg/ctxlog"
	"github.com/bissquit/guildhall/internal/pkg/metrics"
)

// ErrInvalidSale is returned for sales that cannot be announced.
var ErrInvalidSale = errors.New("invalid sale")

// GeneralNotifier delivers an event to the general channel.
type GeneralNotifier interface {
	General(ctx context.Context, event notifications.Event) notifications.ChannelReport
}

// NameResolver maps user ids to display names.
type NameResolver interface {
	Names(ctx context.Context, ids []string) (names []string, missing []string, err error)
}

// Service implements sale registration.
type Service struct {
	notifier GeneralNotifier
	resolver NameResolver
	gate     *authz.Gate
}

// NewService creates a new sales service. resolver may be nil, in which
// case sellers are shown by id.
func NewService(notifier GeneralNotifier, resolver NameResolver, gate *authz.Gate) *Service {
	return &Service{
		notifier: notifier,
		resolver: resolver,
		gate:     gate,
	}
}

// Register announces a sale on the general channel.
func (s *Service) Register(ctx context.Context, actor authz.Actor, sale domain.Sale) (notifications.ChannelReport, error) {
	if err := s.gate.Authorize(actor.Level, authz.OpRegisterSale); err != nil {
		return notifications.ChannelReport{}, err
	}

	event := notifications.SaleRegistered{
		Meta:       notifications.NewMeta(actor.Name),
		Sale:       sale,
		SellerName: s.sellerName(ctx, sale.UserID),
	}
	if err := event.Validate(); err != nil {
		return notifications.ChannelReport{}, fmt.Errorf("%w: %w", ErrInvalidSale, err)
	}

	metrics.RecordSale()
	report := s.notifier.General(ctx, event)
	ctxlog.FromContext(ctx).Info("sale announced",
		"user_id", sale.UserID,
		"product", sale.Product,
		"delivered", report.Delivered(),
	)
	return report, nil
}

func (s *Service) sellerName(ctx context.Context, userID string) string {
	if s.resolver == nil {
		return ""
	}
	names, _, err := s.resolver.Names(ctx, []string{userID})
	if err != nil {
		ctxlog.FromContext(ctx).Warn("failed to resolve seller", "user_id", userID, "error", err)
		return ""
	}
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
