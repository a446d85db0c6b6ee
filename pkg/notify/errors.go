package notify

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedEvent is returned by Route for unknown event names.
	ErrUnsupportedEvent = errors.New("unsupported event")
	// ErrNotImplemented marks a known event whose action has no handling branch.
	ErrNotImplemented = errors.New("method not implemented")
	// ErrInvalidPayload wraps JSON decoding failures.
	ErrInvalidPayload = errors.New("invalid payload")
)

func notImplemented(event, action string) error {
	if action == "" {
		return fmt.Errorf("%w: %s", ErrNotImplemented, event)
	}
	return fmt.Errorf("%w: %s.%s", ErrNotImplemented, event, action)
}
