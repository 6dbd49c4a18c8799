package model

import "time"

// SubscriptionTermDays is the fixed AMC term.
const SubscriptionTermDays = 365

// SubscriptionWindow is the [Start, End) date range of an AMC contract.
// Both ends are UTC midnights.
type SubscriptionWindow struct {
	Start time.Time
	End   time.Time
}

// NewSubscriptionWindow starts the term on the calendar date of now.
func NewSubscriptionWindow(now time.Time) SubscriptionWindow {
	start := DateOf(now)
	return SubscriptionWindow{
		Start: start,
		End:   start.AddDate(0, 0, SubscriptionTermDays),
	}
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// LifecycleState is the payment/subscription state shared by the order-create
// and verification flows.
type LifecycleState string

const (
	LifecycleCreated   LifecycleState = "created"   // intent registered with the gateway
	LifecycleCaptured  LifecycleState = "captured"  // payment verified, order not yet active
	LifecycleActivated LifecycleState = "activated" // order active with a subscription window
)

var lifecycleEdges = map[LifecycleState]LifecycleState{
	LifecycleCreated:  LifecycleCaptured,
	LifecycleCaptured: LifecycleActivated,
}

// CanTransition reports whether to directly follows s. Activated is only
// reachable from Captured.
func (s LifecycleState) CanTransition(to LifecycleState) bool {
	next, ok := lifecycleEdges[s]
	return ok && next == to
}

// LifecycleOf derives the state from the stored intent and order.
func LifecycleOf(intent *PaymentIntent, order *Order) LifecycleState {
	if intent == nil || !intent.IsCaptured() {
		return LifecycleCreated
	}
	if order != nil && order.IsActive() && order.PaymentID == intent.PaymentID() {
		return LifecycleActivated
	}
	return LifecycleCaptured
}
