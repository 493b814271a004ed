package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCoversEveryCode(t *testing.T) {
	statuses := map[Code]int{
		CodeValidation:         http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeStateConflict:      http.StatusUnprocessableEntity,
		CodeIdempotency:        http.StatusConflict,
		CodeRateLimit:          http.StatusTooManyRequests,
		CodeInternal:           http.StatusInternalServerError,
		CodeDependency:         http.StatusServiceUnavailable,
		CodePaymentDeclined:    http.StatusBadRequest,
		CodeCheckoutIncomplete: http.StatusInternalServerError,
	}
	require.Len(t, catalog, len(statuses))
	for code, status := range statuses {
		m := MetadataFor(code)
		assert.Equal(t, status, m.HTTPStatus, code)
		assert.NotEmpty(t, m.PublicMessage, code)
	}

	assert.True(t, MetadataFor(CodeInternal).Retryable)
	assert.True(t, MetadataFor(CodeDependency).Retryable)
	assert.False(t, MetadataFor(CodeValidation).Retryable)
	assert.False(t, MetadataFor(CodeInternal).ClientMessage)
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("NOPE"))
}

func TestWrapAndFormatting(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load cart")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: load cart: connection reset", err.Error())
	assert.Equal(t, "NOT_FOUND: gone", New(CodeNotFound, "gone").Error())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Nil(t, nilErr.WithDetails("x"))
}

func TestAsAndIsCode(t *testing.T) {
	inner := Newf(CodeConflict, "Order with status %s cannot be cancelled", "shipped")
	wrapped := fmt.Errorf("cancel: %w", inner)

	require.Same(t, inner, As(wrapped))
	assert.Equal(t, "Order with status shipped cannot be cancelled", As(wrapped).Message())
	assert.True(t, IsCode(wrapped, CodeConflict))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
	assert.False(t, IsCode(nil, ""))
	assert.Nil(t, As(nil))
}

func TestClassificationHelpers(t *testing.T) {
	plain := stdErrors.New("boom")

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(plain))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(New(CodeRateLimit, "slow down")))

	assert.True(t, Retryable(plain))
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(New(CodeConflict, "dupe")))

	assert.Equal(t, "internal server error", PublicMessage(plain))
	assert.Equal(t, "internal server error", PublicMessage(Wrap(CodeInternal, plain, "secret detail")))
	assert.Equal(t, "Card declined", PublicMessage(New(CodePaymentDeclined, "Card declined")))
	assert.Equal(t, "resource not found", PublicMessage(New(CodeNotFound, "")))
}

func TestLogFields(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("reset"), "load cart").
		WithDetails(map[string]any{"step": "payment"})

	fields := LogFields(err)
	assert.Equal(t, "DEPENDENCY_ERROR", fields["error_code"])
	assert.Equal(t, "payment", fields["step"])
	assert.Len(t, fields["error_chain"], 2)
	assert.NotContains(t, fields, "pg_code")

	assert.Empty(t, LogFields(nil))
}

func TestPostgresFrom(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "23505", ConstraintName: "products_name_key", TableName: "products"}
	pg, ok := PostgresFrom(Wrap(CodeConflict, pgxErr, "insert product"))
	require.True(t, ok)
	assert.Equal(t, "23505", pg.Code)
	assert.Equal(t, "products_name_key", pg.Constraint)

	pqErr := &pq.Error{Code: "23503", Table: "order_items"}
	pg, ok = PostgresFrom(fmt.Errorf("save: %w", pqErr))
	require.True(t, ok)
	assert.Equal(t, "23503", pg.Code)
	assert.Equal(t, "order_items", pg.Table)

	_, ok = PostgresFrom(stdErrors.New("plain"))
	assert.False(t, ok)

	assert.Equal(t, "23503", LogFields(pqErr)["pg_code"])
}
