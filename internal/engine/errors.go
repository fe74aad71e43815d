package engine

import (
	"errors"
	"fmt"

	"github.com/conclave-games/conclave-server/internal/engine/rules"
)

// Error codes surfaced to players. Anything else is an internal error.
const (
	CodeIllegalAction    = "ILLEGAL_ACTION"
	CodeInvalidSelection = "INVALID_SELECTION"
	CodeNotAuthorized    = "NOT_AUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
)

// ActionError is a structured, player-facing rejection. The game state is
// untouched whenever one is returned.
type ActionError struct {
	Code   string
	Reason string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func illegalf(format string, args ...any) *ActionError {
	return &ActionError{Code: CodeIllegalAction, Reason: fmt.Sprintf(format, args...)}
}

func invalidf(format string, args ...any) *ActionError {
	return &ActionError{Code: CodeInvalidSelection, Reason: fmt.Sprintf(format, args...)}
}

func unauthorizedf(format string, args ...any) *ActionError {
	return &ActionError{Code: CodeNotAuthorized, Reason: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *ActionError {
	return &ActionError{Code: CodeNotFound, Reason: fmt.Sprintf(format, args...)}
}

// ErrInvariant marks internal consistency violations. These are logged and
// never shown to players as-is.
var ErrInvariant = errors.New("invariant violation")

// queueError converts resolution queue sentinel errors into ActionErrors.
func queueError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rules.ErrNotAuthorized):
		return &ActionError{Code: CodeNotAuthorized, Reason: err.Error()}
	case errors.Is(err, rules.ErrInvalidSelection):
		return &ActionError{Code: CodeInvalidSelection, Reason: err.Error()}
	case errors.Is(err, rules.ErrStepNotActive):
		return &ActionError{Code: CodeInvalidSelection, Reason: err.Error()}
	default:
		return err
	}
}
