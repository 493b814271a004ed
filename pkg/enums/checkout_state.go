package enums

import "slices"

// CheckoutState is the persisted progress marker of a checkout saga.
type CheckoutState string

const (
	CheckoutStateCreated        CheckoutState = "created"
	CheckoutStatePaid           CheckoutState = "paid"
	CheckoutStateLinked         CheckoutState = "linked"
	CheckoutStateCartCleared    CheckoutState = "cart_cleared"
	CheckoutStateDone           CheckoutState = "done"
	CheckoutStateFailed         CheckoutState = "failed"
	CheckoutStateNeedsAttention CheckoutState = "needs_attention"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateCreated,
	CheckoutStatePaid,
	CheckoutStateLinked,
	CheckoutStateCartCleared,
	CheckoutStateDone,
	CheckoutStateFailed,
	CheckoutStateNeedsAttention,
}

func (s CheckoutState) String() string {
	return string(s)
}

func (s CheckoutState) IsValid() bool {
	return slices.Contains(validCheckoutStates, s)
}

// Terminal reports whether the reconciler should leave the saga alone.
func (s CheckoutState) Terminal() bool {
	return s == CheckoutStateDone || s == CheckoutStateFailed || s == CheckoutStateNeedsAttention
}

// ResumableCheckoutStates lists the states the reconciler picks up.
func ResumableCheckoutStates() []CheckoutState {
	return []CheckoutState{
		CheckoutStateCreated,
		CheckoutStatePaid,
		CheckoutStateLinked,
		CheckoutStateCartCleared,
	}
}

func ParseCheckoutState(value string) (CheckoutState, error) {
	return parse(value, validCheckoutStates, "checkout state")
}
