package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type cartCall struct {
	userID    uuid.UUID
	productID uuid.UUID
	qty       int
}

type stubCartService struct {
	cart.Service
	added   *cartCall
	updated *cartCall
	err     error
}

func (s *stubCartService) Add(ctx context.Context, userID, productID uuid.UUID, qty int) (*types.MessageResponse, error) {
	s.added = &cartCall{userID, productID, qty}
	return &types.MessageResponse{Message: cart.MessageItemAdded}, nil
}

func (s *stubCartService) Update(ctx context.Context, userID, productID uuid.UUID, qty int) (*types.MessageResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.updated = &cartCall{userID, productID, qty}
	return &types.MessageResponse{Message: cart.MessageItemUpdated}, nil
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) ([]cart.LineDTO, error) {
	return []cart.LineDTO{{ID: uuid.New(), Quantity: 2}}, nil
}

func TestCartAdd(t *testing.T) {
	svc := &stubCartService{}
	userID, productID := uuid.New(), uuid.New()
	req := asUser(jsonRequest(t, http.MethodPost, "/api/v1/products/cart", map[string]any{"productId": productID, "quantity": 3}), userID, enums.UserRoleUser)

	resp := serve(CartAdd(svc, nil), req)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, cartCall{userID, productID, 3}, *svc.added)
}

func TestCartAddValidatesQuantity(t *testing.T) {
	svc := &stubCartService{}
	req := asUser(jsonRequest(t, http.MethodPost, "/api/v1/products/cart", map[string]any{"productId": uuid.New(), "quantity": 0}), uuid.New(), enums.UserRoleUser)

	resp := serve(CartAdd(svc, nil), req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Nil(t, svc.added)
}

func TestCartUpdateItemNotInCart(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "Item not found in cart")}
	productID := uuid.New()
	req := asUser(jsonRequest(t, http.MethodPut, "/", map[string]int{"quantity": 2}), uuid.New(), enums.UserRoleUser)
	req = withParams(req, "productId", productID.String())

	resp := serve(CartUpdate(svc, nil), req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCartMine(t *testing.T) {
	req := asUser(jsonRequest(t, http.MethodGet, "/api/v1/products/cart/my", nil), uuid.New(), enums.UserRoleUser)
	resp := serve(CartMine(&stubCartService{}, nil), req)
	require.Equal(t, http.StatusOK, resp.Code)

	var lines []cart.LineDTO
	decodeData(t, resp, &lines)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}
