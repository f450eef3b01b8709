package dispatch

import (
	"errors"
	"fmt"

	"github.com/MrWong99/drivewise/internal/navigation"
)

// InvalidRequestError means the driver asked for something that cannot be
// done with the information given.
type InvalidRequestError struct{ Msg string }

func (e *InvalidRequestError) Error() string { return "dispatch: invalid request: " + e.Msg }

// StateError means the request conflicts with the current trip state.
type StateError struct{ Msg string }

func (e *StateError) Error() string { return "dispatch: state: " + e.Msg }

// NavigationError wraps a failed routing or place lookup.
type NavigationError struct {
	Msg string
	Err error
}

func (e *NavigationError) Error() string {
	if e.Err == nil {
		return "dispatch: navigation: " + e.Msg
	}
	return fmt.Sprintf("dispatch: navigation: %s: %v", e.Msg, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// CommunicationError wraps a failed outbound message.
type CommunicationError struct {
	Msg string
	Err error
}

func (e *CommunicationError) Error() string {
	if e.Err == nil {
		return "dispatch: communication: " + e.Msg
	}
	return fmt.Sprintf("dispatch: communication: %s: %v", e.Msg, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

const replyUnexpected = "Sorry, an unexpected error occurred while processing your request."

// apology converts a domain error into the reply read to the driver.
func apology(err error) string {
	var (
		inv  *InvalidRequestError
		st   *StateError
		nav  *NavigationError
		comm *CommunicationError
	)
	switch {
	case errors.As(err, &inv):
		return "I can't do that right now. " + inv.Msg
	case errors.As(err, &st):
		return "Sorry, I can't do that in the current state. " + st.Msg
	case errors.As(err, &nav):
		return "Sorry, I had trouble with the navigation request: " + nav.Msg
	case errors.As(err, &comm):
		return "Sorry, I couldn't complete the communication task: " + comm.Msg
	default:
		return replyUnexpected
	}
}

// errorClass names err's class for logs.
func errorClass(err error) string {
	var (
		inv  *InvalidRequestError
		st   *StateError
		nav  *NavigationError
		comm *CommunicationError
	)
	switch {
	case errors.As(err, &inv):
		return "invalid_request"
	case errors.As(err, &st):
		return "state"
	case errors.As(err, &nav):
		return "navigation"
	case errors.As(err, &comm):
		return "communication"
	default:
		return "unexpected"
	}
}

func isNavigationFailure(err error) bool {
	var nerr *navigation.Error
	return errors.Is(err, navigation.ErrNoRoute) || errors.As(err, &nerr)
}

// navigationFailure maps errors from the navigation collaborator.
func navigationFailure(destination string, err error) error {
	switch {
	case errors.Is(err, navigation.ErrInvalidDestination):
		return &InvalidRequestError{Msg: fmt.Sprintf("I couldn't make out a place from %q. Please say the destination again.", destination)}
	case errors.Is(err, navigation.ErrNoRoute):
		return &NavigationError{Msg: fmt.Sprintf("Could not find a route to %s.", destination), Err: err}
	case isNavigationFailure(err):
		return &NavigationError{Msg: "The map service is not responding right now.", Err: err}
	default:
		return err
	}
}
