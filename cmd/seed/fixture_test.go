package main

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type noUsers struct{}

func (noUsers) Exists(context.Context, uuid.UUID) (bool, error) { return false, nil }

func TestLoadFixtureBundledCatalog(t *testing.T) {
	f, err := os.Open("catalog.yaml")
	require.NoError(t, err)
	defer f.Close()

	fixture, err := LoadFixture(f)
	require.NoError(t, err)
	require.Len(t, fixture.Categories, 3)
	assert.Equal(t, "Smart Phones", fixture.Categories[0].Name)
	assert.Equal(t, "Tensor G4", fixture.Categories[0].Products[0].Specs.CPU)
}

func TestLoadFixtureRejectsUnknownFields(t *testing.T) {
	_, err := LoadFixture(strings.NewReader("categories:\n  - name: Phones\n    colour: red\n"))
	require.Error(t, err)
}

func TestLoadFixtureRequiresNames(t *testing.T) {
	_, err := LoadFixture(strings.NewReader("categories:\n  - name: Phones\n    products:\n      - price: \"1\"\n"))
	require.Error(t, err)
}

func TestApplyIsRerunnable(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	svc, err := catalog.NewService(catalog.NewRepository(conn), noUsers{})
	require.NoError(t, err)

	fixture := &Fixture{Categories: []CategoryFixture{{
		Name: "Phones",
		Products: []ProductFixture{
			{Name: "Pixel Nine", Price: "799.00", Specs: SpecsFixture{Memory: "12GB"}},
			{Name: "Galaxy S24", Price: "899.99"},
		},
	}}}

	first, err := Apply(ctx, svc, fixture, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{CategoriesCreated: 1, ProductsCreated: 2}, first)

	second, err := Apply(ctx, svc, fixture, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{CategoriesSkipped: 1, ProductsSkipped: 2}, second)

	var products []models.Product
	require.NoError(t, conn.Find(&products).Error)
	require.Len(t, products, 2)
	for _, p := range products {
		if p.Name == "Pixel Nine" {
			assert.Equal(t, "12GB", p.Specs.Memory)
			assert.True(t, p.Price.Equal(decimal.RequireFromString("799")))
		}
	}
}

func TestApplyRejectsBadPrice(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := catalog.NewService(catalog.NewRepository(conn), noUsers{})
	require.NoError(t, err)

	_, err = Apply(context.Background(), svc, &Fixture{Categories: []CategoryFixture{{
		Name:     "Phones",
		Products: []ProductFixture{{Name: "Broken", Price: "abc"}},
	}}}, nil)
	require.Error(t, err)
}
