// Package checkout drives a client's cart through address capture and
// payment to a confirmed order.
package checkout

// State is a checkout session state.
type State int

// Checkout states. Confirmed and Abandoned end a session; StartCheckout
// begins a new one from either.
const (
	StateCart State = iota
	StateAddressCapture
	StatePaymentPending
	StateConfirmed
	StateAbandoned
)

var stateNames = [...]string{
	StateCart:           "cart",
	StateAddressCapture: "address_capture",
	StatePaymentPending: "payment_pending",
	StateConfirmed:      "confirmed",
	StateAbandoned:      "abandoned",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
