package gcra

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSpec is returned before contacting the store when a RateSpec
	// cannot describe a schedule.
	ErrInvalidSpec = errors.New("gcra: invalid rate spec")

	// ErrNoScript reports that the store does not know the script SHA it was
	// asked to run.
	ErrNoScript = errors.New("gcra: script not loaded")

	// ErrUnexpectedReply is returned when the store reply does not have the
	// shape the scripts produce.
	ErrUnexpectedReply = errors.New("gcra: unexpected store reply")
)

// noScript wraps a store error carrying the NOSCRIPT prefix so that it
// matches ErrNoScript while keeping the original message.
func noScript(err error) error {
	if err == nil || !strings.HasPrefix(err.Error(), "NOSCRIPT") {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNoScript, err)
}
