package notifications

import (
	"errors"
	"fmt"
)

// Errors.
var (
	ErrInvalidEvent         = errors.New("invalid notification event")
	ErrChannelNotConfigured = errors.New("notification channel not configured")
	ErrDeliveryFailed       = errors.New("notification delivery failed")

	errNilEvent = fmt.Errorf("%w: event is nil", ErrInvalidEvent)
)
