package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultDeliveryTimeout = 10 * time.Second
	defaultMaxParallel     = 4
)

// Sender delivers a rendered message to one webhook endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint string, msg Message) error
}

// DispatcherConfig holds delivery settings.
type DispatcherConfig struct {
	Timeout     time.Duration // per endpoint
	MaxParallel int
}

// Outcome is the delivery result for one endpoint.
type Outcome struct {
	Endpoint string `json:"endpoint"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// DispatchResult lists one Outcome per endpoint, in endpoint order.
type DispatchResult []Outcome

// Succeeded returns the number of successful deliveries.
func (r DispatchResult) Succeeded() int {
	n := 0
	for _, o := range r {
		if o.OK {
			n++
		}
	}
	return n
}

// Failed returns the number of failed deliveries.
func (r DispatchResult) Failed() int {
	return len(r) - r.Succeeded()
}

// Redacted returns a copy with endpoint URLs masked.
func (r DispatchResult) Redacted() DispatchResult {
	out := make(DispatchResult, len(r))
	for i, o := range r {
		o.Endpoint = MaskWebhookURL(o.Endpoint)
		out[i] = o
	}
	return out
}

// Dispatcher renders events and fans them out to endpoints.
type Dispatcher struct {
	sender   Sender
	renderer *Renderer
	config   DispatcherConfig
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(sender Sender, renderer *Renderer, config DispatcherConfig) *Dispatcher {
	if config.Timeout <= 0 {
		config.Timeout = defaultDeliveryTimeout
	}
	if config.MaxParallel <= 0 {
		config.MaxParallel = defaultMaxParallel
	}
	return &Dispatcher{
		sender:   sender,
		renderer: renderer,
		config:   config,
	}
}

// Dispatch delivers event to every endpoint concurrently. Each endpoint gets
// its own timeout and a failure never cancels the other deliveries. The
// returned error is only set when the event itself is invalid.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, endpoints []string) (DispatchResult, error) {
	if event == nil {
		return nil, errNilEvent
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	result := make(DispatchResult, len(endpoints))
	if len(endpoints) == 0 {
		return result, nil
	}

	msg := d.renderer.Render(event)
	kind := string(event.Kind())

	var g errgroup.Group
	g.SetLimit(d.config.MaxParallel)

	for i, endpoint := range endpoints {
		g.Go(func() error {
			result[i] = d.deliver(ctx, kind, endpoint, msg)
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("notification dispatched",
		"kind", kind,
		"endpoints", len(endpoints),
		"succeeded", result.Succeeded(),
		"failed", result.Failed(),
	)

	return result, nil
}

func (d *Dispatcher) deliver(ctx context.Context, kind, endpoint string, msg Message) Outcome {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	start := time.Now()
	err := d.sender.Send(ctx, endpoint, msg)
	recordNotificationDuration(kind, time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", err, ctx.Err())
		}
		slog.Warn("failed to deliver notification",
			"kind", kind,
			"endpoint", MaskWebhookURL(endpoint),
			"error", err,
		)
		recordNotificationSent(kind, "failed")
		return Outcome{Endpoint: endpoint, OK: false, Error: err.Error()}
	}

	recordNotificationSent(kind, "sent")
	return Outcome{Endpoint: endpoint, OK: true}
}

// MaskWebhookURL hides part of the URL for logging.
func MaskWebhookURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-10:]
	}
	return url
}
