package notifications

import (
	"context"
	"log/slog"
	"sync"
)

// Channel is a delivery class.
type Channel string

// Delivery classes.
const (
	ChannelGeneral  Channel = "general"
	ChannelPersonal Channel = "personal"
)

// ChannelReport is the outcome of dispatching to one channel.
type ChannelReport struct {
	Channel Channel        `json:"channel"`
	Skipped bool           `json:"skipped"`
	Reason  string         `json:"reason,omitempty"`
	Result  DispatchResult `json:"result"`
}

// Delivered reports whether at least one endpoint accepted the message.
func (r ChannelReport) Delivered() bool {
	return r.Result.Succeeded() > 0
}

// AllFailed reports whether there were endpoints and none accepted.
func (r ChannelReport) AllFailed() bool {
	return !r.Skipped && len(r.Result) > 0 && r.Result.Succeeded() == 0
}

// Redacted returns a copy safe to return to API clients.
func (r ChannelReport) Redacted() ChannelReport {
	r.Result = r.Result.Redacted()
	return r
}

// Report holds the per-channel reports of one announcement.
type Report struct {
	General  ChannelReport  `json:"general"`
	Personal *ChannelReport `json:"personal,omitempty"`
}

// Announcer publishes events. Implemented by Notifier.
type Announcer interface {
	Announce(ctx context.Context, event Event, personal Event, pasta string) Report
}

// Notifier sends events to the general channel and to a member's personal
// channel. Failures are reported, never returned.
type Notifier struct {
	dispatcher      *Dispatcher
	generalWebhooks []string
}

// NewNotifier creates a notifier. generalWebhooks may be empty, in which case
// the general channel is skipped.
func NewNotifier(dispatcher *Dispatcher, generalWebhooks []string) *Notifier {
	return &Notifier{
		dispatcher:      dispatcher,
		generalWebhooks: generalWebhooks,
	}
}

// General dispatches event to the process-wide general channel.
func (n *Notifier) General(ctx context.Context, event Event) ChannelReport {
	return n.dispatch(ctx, ChannelGeneral, event, n.generalWebhooks)
}

// Personal dispatches event to a member's pasta webhook.
func (n *Notifier) Personal(ctx context.Context, event Event, pasta string) ChannelReport {
	var endpoints []string
	if pasta != "" {
		endpoints = []string{pasta}
	}
	return n.dispatch(ctx, ChannelPersonal, event, endpoints)
}

// Announce sends event to the general channel and, when personal is not nil,
// personal to the pasta webhook. Both run concurrently and independently.
// Deliveries are detached from ctx cancellation so that a finished request
// does not abort them.
func (n *Notifier) Announce(ctx context.Context, event Event, personal Event, pasta string) Report {
	ctx = context.WithoutCancel(ctx)

	var (
		report Report
		wg     sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		report.General = n.General(ctx, event)
	}()

	if personal != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := n.Personal(ctx, personal, pasta)
			report.Personal = &r
		}()
	}

	wg.Wait()
	return report
}

func (n *Notifier) dispatch(ctx context.Context, channel Channel, event Event, endpoints []string) ChannelReport {
	report := ChannelReport{Channel: channel, Result: DispatchResult{}}

	if event == nil {
		slog.Error("notification not dispatched", "channel", channel, "error", errNilEvent)
		report.Skipped = true
		report.Reason = errNilEvent.Error()
		return report
	}

	if len(endpoints) == 0 {
		slog.Warn("notification channel not configured, skipping",
			"channel", channel,
			"kind", event.Kind(),
		)
		recordChannelSkipped(channel)
		report.Skipped = true
		report.Reason = ErrChannelNotConfigured.Error()
		return report
	}

	result, err := n.dispatcher.Dispatch(ctx, event, endpoints)
	if err != nil {
		slog.Error("notification not dispatched",
			"channel", channel,
			"kind", event.Kind(),
			"error", err,
		)
		report.Skipped = true
		report.Reason = err.Error()
		return report
	}

	report.Result = result
	return report
}
