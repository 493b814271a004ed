package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type lineInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

type orderInput struct {
	Email string      `json:"email" validate:"required,email"`
	Note  string      `json:"note" validate:"omitempty,max=5"`
	Items []lineInput `json:"items" validate:"required,min=1,dive"`
}

func decode(t *testing.T, body string) (orderInput, error) {
	t.Helper()
	var in orderInput
	req := httptest.NewRequest("POST", "/orders", strings.NewReader(body))
	return in, DecodeJSONBody(req, &in)
}

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok, "details %T", typed.Details())
	return details
}

func TestDecodeJSONBodyAcceptsValidInput(t *testing.T) {
	in, err := decode(t, `{"email":"a@b.co","items":[{"productId":"p1","quantity":2}]}`)
	require.NoError(t, err)
	assert.Equal(t, 2, in.Items[0].Quantity)
}

func TestDecodeJSONBodyFieldErrorsUseJSONPaths(t *testing.T) {
	_, err := decode(t, `{"email":"nope","note":"too long","items":[{"productId":"","quantity":0}]}`)
	details := detailsOf(t, err)

	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must have at most 5 characters", details["note"])
	assert.Equal(t, "is required", details["items[0].productId"])
	assert.Equal(t, "must be at least 1", details["items[0].quantity"])
}

func TestDecodeJSONBodyRejectsBadBodies(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"malformed":     `{"email":`,
		"unknown field": `{"email":"a@b.co","items":[],"admin":true}`,
		"wrong type":    `{"email":42}`,
		"two objects":   `{"email":"a@b.co","items":[{"productId":"p","quantity":1}]} {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, body)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, "invalid request body", typed.Message())
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello \x00 ", 0))
	assert.Equal(t, "héllo", SanitizeString("héllo wörld", 6))
	assert.Equal(t, "h", SanitizeString("héllo", 2))
	assert.Equal(t, "line\nbreak", SanitizeString("line\nbreak", 100))
}
