package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Fixture is the on-disk shape of a catalog seed file.
type Fixture struct {
	Categories []CategoryFixture `yaml:"categories"`
}

type CategoryFixture struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	ImageURL    string           `yaml:"imageUrl"`
	SortOrder   *int             `yaml:"sortOrder"`
	Products    []ProductFixture `yaml:"products"`
}

type ProductFixture struct {
	Name             string       `yaml:"name"`
	ImageURL         string       `yaml:"imageUrl"`
	AdditionalImages []string     `yaml:"additionalImages"`
	Price            string       `yaml:"price"`
	NewPrice         string       `yaml:"newPrice"`
	OldPrice         string       `yaml:"oldPrice"`
	Colour           string       `yaml:"colour"`
	Details          string       `yaml:"details"`
	Specs            SpecsFixture `yaml:"specs"`
}

type SpecsFixture struct {
	Memory          string `yaml:"memory"`
	ScreenSize      string `yaml:"screenSize"`
	CPU             string `yaml:"cpu"`
	NumberOfCores   string `yaml:"numberOfCores"`
	MainCamera      string `yaml:"mainCamera"`
	FrontCamera     string `yaml:"frontCamera"`
	BatteryCapacity string `yaml:"batteryCapacity"`
}

// Report counts what a seed run created and what already existed.
type Report struct {
	CategoriesCreated int
	CategoriesSkipped int
	ProductsCreated   int
	ProductsSkipped   int
}

type catalogWriter interface {
	CreateCategory(ctx context.Context, input catalog.CategoryInput) (*catalog.CategoryDTO, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]catalog.CategoryDTO, error)
	CreateProduct(ctx context.Context, input catalog.ProductInput) (*catalog.ProductDTO, error)
}

func LoadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fixture Fixture
	if err := dec.Decode(&fixture); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for i, c := range fixture.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("category %d: name is required", i)
		}
		for j, p := range c.Products {
			if strings.TrimSpace(p.Name) == "" {
				return nil, fmt.Errorf("category %q product %d: name is required", c.Name, j)
			}
		}
	}
	return &fixture, nil
}

// Apply writes the fixture through the catalog service. Rows whose names
// already exist are left untouched so the seed can be rerun.
func Apply(ctx context.Context, svc catalogWriter, fixture *Fixture, logg *logger.Logger) (Report, error) {
	var report Report
	existing, err := svc.ListCategories(ctx, false)
	if err != nil {
		return report, fmt.Errorf("list categories: %w", err)
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, c := range existing {
		ids[strings.ToLower(c.Name)] = c.ID
	}

	for _, c := range fixture.Categories {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		categoryID, ok := ids[key]
		if ok {
			report.CategoriesSkipped++
		} else {
			created, err := svc.CreateCategory(ctx, catalog.CategoryInput{
				Name:        c.Name,
				Description: optional(c.Description),
				ImageURL:    optional(c.ImageURL),
				SortOrder:   c.SortOrder,
			})
			if err != nil {
				return report, fmt.Errorf("create category %q: %w", c.Name, err)
			}
			categoryID = created.ID
			ids[key] = categoryID
			report.CategoriesCreated++
		}

		for _, p := range c.Products {
			input, err := p.input(categoryID)
			if err != nil {
				return report, err
			}
			if _, err := svc.CreateProduct(ctx, input); err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
					report.ProductsSkipped++
					continue
				}
				return report, fmt.Errorf("create product %q: %w", p.Name, err)
			}
			report.ProductsCreated++
		}
		if logg != nil {
			logg.Debug(logg.WithField(ctx, "category", c.Name), "category seeded")
		}
	}
	return report, nil
}

func (p ProductFixture) input(categoryID uuid.UUID) (catalog.ProductInput, error) {
	price, err := optionalDecimal(p.Price)
	if err != nil {
		return catalog.ProductInput{}, fmt.Errorf("product %q price: %w", p.Name, err)
	}
	newPrice, err := optionalDecimal(p.NewPrice)
	if err != nil {
		return catalog.ProductInput{}, fmt.Errorf("product %q newPrice: %w", p.Name, err)
	}
	oldPrice, err := optionalDecimal(p.OldPrice)
	if err != nil {
		return catalog.ProductInput{}, fmt.Errorf("product %q oldPrice: %w", p.Name, err)
	}
	return catalog.ProductInput{
		CategoryID:       categoryID,
		Name:             p.Name,
		ImageURL:         optional(p.ImageURL),
		AdditionalImages: p.AdditionalImages,
		Price:            price,
		NewPrice:         newPrice,
		OldPrice:         oldPrice,
		Colour:           optional(p.Colour),
		Details:          optional(p.Details),
		Specs:            models.ProductSpecs(p.Specs),
	}, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func optionalDecimal(v string) (*decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
