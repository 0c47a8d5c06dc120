package orders

import (
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
)

// orderTransitions is the closed order-status graph. Terminal states
// have no outgoing edges.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {enums.OrderStatusRefunded, enums.OrderStatusReturned},
}

// paymentTransitions is the parallel payment-status graph.
var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending:    {enums.PaymentStatusAuthorized, enums.PaymentStatusPaid, enums.PaymentStatusFailed, enums.PaymentStatusCancelled},
	enums.PaymentStatusAuthorized: {enums.PaymentStatusPaid, enums.PaymentStatusFailed, enums.PaymentStatusCancelled},
	enums.PaymentStatusFailed:     {enums.PaymentStatusPaid, enums.PaymentStatusCancelled},
	enums.PaymentStatusPaid:       {enums.PaymentStatusRefunded, enums.PaymentStatusPartiallyRefunded},
}

// CanTransitionOrder reports whether the order-status edge exists.
func CanTransitionOrder(from, to enums.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether the payment-status edge exists.
func CanTransitionPayment(from, to enums.PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GuardOrderTransition rejects an illegal edge without mutating state.
func GuardOrderTransition(from, to enums.OrderStatus) error {
	if !CanTransitionOrder(from, to) {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition,
			"order cannot move from "+from.String()+" to "+to.String())
	}
	return nil
}

// GuardPaymentTransition rejects an illegal edge without mutating state.
func GuardPaymentTransition(from, to enums.PaymentStatus) error {
	if !CanTransitionPayment(from, to) {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition,
			"payment cannot move from "+from.String()+" to "+to.String())
	}
	return nil
}

// cancellableOrderStates are the states a shopper (or the sweeper) may
// cancel from; cancellation from any of them releases reserved stock.
var cancellableOrderStates = map[enums.OrderStatus]struct{}{
	enums.OrderStatusPending:    {},
	enums.OrderStatusConfirmed:  {},
	enums.OrderStatusProcessing: {},
}

// IsCancellable reports whether the status permits cancellation.
func IsCancellable(status enums.OrderStatus) bool {
	_, ok := cancellableOrderStates[status]
	return ok
}
