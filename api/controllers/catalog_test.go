package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubCatalogService struct {
	catalog.Service
	filter     *catalog.ProductFilter
	categoryIn *catalog.CategoryInput
	getErr     error
	liked      []uuid.UUID
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter catalog.ProductFilter) (*catalog.ProductListDTO, error) {
	s.filter = &filter
	return &catalog.ProductListDTO{Products: []catalog.ProductDTO{}, Total: 0, Pages: 0}, nil
}

func (s *stubCatalogService) ListByCategory(ctx context.Context, categoryID uuid.UUID, filter catalog.ProductFilter) (*catalog.ProductListDTO, error) {
	filter.CategoryID = &categoryID
	s.filter = &filter
	return &catalog.ProductListDTO{Products: []catalog.ProductDTO{}}, nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.ProductDTO, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &catalog.ProductDTO{ID: id, Name: "Phone"}, nil
}

func (s *stubCatalogService) CreateCategory(ctx context.Context, input catalog.CategoryInput) (*catalog.CategoryDTO, error) {
	s.categoryIn = &input
	return &catalog.CategoryDTO{ID: uuid.New(), Name: input.Name}, nil
}

func (s *stubCatalogService) Like(ctx context.Context, userID, productID uuid.UUID) (*types.MessageResponse, error) {
	s.liked = append(s.liked, productID)
	return &types.MessageResponse{Message: "Product liked"}, nil
}

func TestProductListParsesFilters(t *testing.T) {
	svc := &stubCatalogService{}
	categoryID := uuid.New()
	req := jsonRequest(t, http.MethodGet, "/api/v1/products?categoryId="+categoryID.String()+"&search=%20phone%20&priceMin=10&priceMax=99.5&sort=price_desc&page=2&limit=20", nil)

	resp := serve(ProductList(svc, nil), req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.filter)
	assert.Equal(t, categoryID, *svc.filter.CategoryID)
	assert.Equal(t, "phone", svc.filter.Search)
	assert.Equal(t, "10", svc.filter.PriceMin.String())
	assert.Equal(t, "99.5", svc.filter.PriceMax.String())
	assert.Equal(t, enums.ProductSortPriceDesc, svc.filter.Sort)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 20, svc.filter.Limit)
}

func TestProductListDefaults(t *testing.T) {
	svc := &stubCatalogService{}
	resp := serve(ProductList(svc, nil), jsonRequest(t, http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.ProductSortNewest, svc.filter.Sort)
	assert.Equal(t, 1, svc.filter.Page)
	assert.Equal(t, 10, svc.filter.Limit)
	assert.Nil(t, svc.filter.CategoryID)
}

func TestProductListRejectsBadQuery(t *testing.T) {
	for _, target := range []string{
		"/api/v1/products?sort=popular",
		"/api/v1/products?limit=101",
		"/api/v1/products?priceMin=cheap",
		"/api/v1/products?categoryId=abc",
	} {
		svc := &stubCatalogService{}
		resp := serve(ProductList(svc, nil), jsonRequest(t, http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, resp.Code, target)
		assert.Nil(t, svc.filter, target)
	}
}

func TestProductListByCategoryUsesPathParam(t *testing.T) {
	svc := &stubCatalogService{}
	categoryID := uuid.New()
	req := withParams(jsonRequest(t, http.MethodGet, "/api/v1/products/category/"+categoryID.String(), nil), "categoryId", categoryID.String())

	resp := serve(ProductListByCategory(svc, nil), req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, categoryID, *svc.filter.CategoryID)
}

func TestProductGet(t *testing.T) {
	id := uuid.New()
	resp := serve(ProductGet(&stubCatalogService{}, nil), withParams(jsonRequest(t, http.MethodGet, "/", nil), "productId", id.String()))
	require.Equal(t, http.StatusOK, resp.Code)
	var product catalog.ProductDTO
	decodeData(t, resp, &product)
	assert.Equal(t, id, product.ID)

	resp = serve(ProductGet(&stubCatalogService{}, nil), withParams(jsonRequest(t, http.MethodGet, "/", nil), "productId", "nope"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	missing := &stubCatalogService{getErr: pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")}
	resp = serve(ProductGet(missing, nil), withParams(jsonRequest(t, http.MethodGet, "/", nil), "productId", id.String()))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Product not found", decodeError(t, resp).Error.Message)
}

func TestCategoryCreateTrimsName(t *testing.T) {
	svc := &stubCatalogService{}
	req := jsonRequest(t, http.MethodPost, "/api/v1/categories", map[string]any{"name": "  Phones  ", "sortOrder": 2})

	resp := serve(CategoryCreate(svc, nil), req)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "Phones", svc.categoryIn.Name)
	assert.Equal(t, 2, *svc.categoryIn.SortOrder)
}

func TestCategoryCreateRejectsUnknownFields(t *testing.T) {
	svc := &stubCatalogService{}
	req := jsonRequest(t, http.MethodPost, "/api/v1/categories", map[string]any{"name": "Phones", "owner": "me"})

	resp := serve(CategoryCreate(svc, nil), req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Nil(t, svc.categoryIn)
}

func TestProductLikeRequiresUser(t *testing.T) {
	svc := &stubCatalogService{}
	productID := uuid.New()
	req := withParams(jsonRequest(t, http.MethodPost, "/", nil), "productId", productID.String())

	resp := serve(ProductLike(svc, nil), req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = serve(ProductLike(svc, nil), asUser(req, uuid.New(), enums.UserRoleUser))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []uuid.UUID{productID}, svc.liked)
}
