package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model; used by sqlite-backed tests and dev bootstrap.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Product{},
		&ProductLike{},
		&CartItem{},
		&Order{},
		&OrderLine{},
		&UserOrder{},
		&PaymentTransaction{},
		&CheckoutSaga{},
		&Review{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
