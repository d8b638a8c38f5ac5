package domain

import (
	"context"
	"time"
)

type AlertEvent struct {
	ID          string
	ProductID   uint
	Title       string
	URL         string
	Kind        TransitionKind
	OldPrice    *int64
	NewPrice    *int64
	TargetPrice *int64
	Currency    string
	At          time.Time
}

type DeliveryOutcome struct {
	Channel   string
	Kind      TransitionKind
	Delivered bool
	Reason    string
}

// AlertDispatcher delivers alert events. Implementations report failures in
// the returned outcome instead of returning errors.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, event AlertEvent) DeliveryOutcome
}
