package order

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a storefront order.
//
// State transitions:
//
//	pending ──> processing ──> shipped ──> delivered
//	   │          │  ▲  │         │
//	   │          │  │  └─> refunded <┘
//	   │          ▼  │
//	   │        on-hold
//	   ├──> cancelled <── processing
//	   └──> failed <── any non-terminal
//
// failed may be recovered manually to processing or closed as cancelled.
// delivered, cancelled and refunded are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
	StatusOnHold     Status = "on-hold"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusFailed, StatusOnHold, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusFailed, StatusRefunded},
	StatusOnHold:     {StatusProcessing, StatusFailed},
	StatusFailed:     {StatusProcessing, StatusCancelled},
	StatusDelivered:  nil,
	StatusCancelled:  nil,
	StatusRefunded:   nil,
}

// ErrInvalidTransition matches every InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrUnknownStatus is returned when parsing an unrecognized status.
var ErrUnknownStatus = errors.New("unknown order status")

// InvalidTransitionError reports a status change the lifecycle forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// Is matches ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ParseStatus reads a stored status. Matching is case-insensitive and
// accepts "on hold" and "on_hold" for on-hold.
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "-", "_", "-").Replace(normalized)
	st := Status(normalized)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// String returns the stored representation.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRefunded
}

// CanTransitionTo reports whether moving to next is allowed. Staying in a
// non-terminal status is allowed so a workflow can be reconciled again.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return !s.Terminal()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo returns next when the move is allowed.
func (s Status) TransitionTo(next Status) (Status, error) {
	if _, ok := transitions[next]; !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownStatus, string(next))
	}
	if !s.CanTransitionTo(next) {
		return s, &InvalidTransitionError{From: s, To: next}
	}
	return next, nil
}
