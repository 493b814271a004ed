package checkout

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// LineSnapshot is the priced view of a cart row captured at checkout.
type LineSnapshot struct {
	CartItemID  uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Price       decimal.Decimal
	Quantity    int
}

// Subtotal returns price × quantity.
func (l LineSnapshot) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// QuantityViolationDetail exposes the data returned to callers when a validation fails.
type QuantityViolationDetail struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	RequestedQty int       `json:"requested_qty"`
}

// AmountMismatchDetail is attached to reconciliation failures.
type AmountMismatchDetail struct {
	Claimed  decimal.Decimal `json:"claimed"`
	Computed decimal.Decimal `json:"computed"`
}

// Total sums every line subtotal.
func Total(lines []LineSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// ValidateQuantities ensures every snapshotted line carries at least one unit.
func ValidateQuantities(lines []LineSnapshot) error {
	var violations []QuantityViolationDetail
	for _, line := range lines {
		if line.Quantity >= 1 {
			continue
		}
		violations = append(violations, QuantityViolationDetail{
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			RequestedQty: line.Quantity,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be at least 1 for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// ReconcileAmount fails with CONFLICT when the client-claimed amount differs
// from the server-computed total.
func ReconcileAmount(claimed, computed decimal.Decimal) error {
	if claimed.Equal(computed) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "payment amount does not match cart total").WithDetails(AmountMismatchDetail{
		Claimed:  claimed,
		Computed: computed,
	})
}
