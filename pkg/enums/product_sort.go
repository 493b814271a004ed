package enums

import "slices"

// ProductSort selects the ordering of catalog listings.
type ProductSort string

const (
	ProductSortNewest    ProductSort = "newest"
	ProductSortPriceAsc  ProductSort = "price_asc"
	ProductSortPriceDesc ProductSort = "price_desc"
	ProductSortNameAsc   ProductSort = "name_asc"
	ProductSortNameDesc  ProductSort = "name_desc"
)

var validProductSorts = []ProductSort{
	ProductSortNewest,
	ProductSortPriceAsc,
	ProductSortPriceDesc,
	ProductSortNameAsc,
	ProductSortNameDesc,
}

func (s ProductSort) IsValid() bool {
	return slices.Contains(validProductSorts, s)
}

// OrderClause returns the SQL ordering for the sort key. Unknown keys fall back to newest.
func (s ProductSort) OrderClause() string {
	switch s {
	case ProductSortPriceAsc:
		return "new_price ASC"
	case ProductSortPriceDesc:
		return "new_price DESC"
	case ProductSortNameAsc:
		return "name ASC"
	case ProductSortNameDesc:
		return "name DESC"
	default:
		return "created_at DESC"
	}
}

// ParseProductSort defaults empty input to newest.
func ParseProductSort(value string) (ProductSort, error) {
	if value == "" {
		return ProductSortNewest, nil
	}
	return parse(value, validProductSorts, "sort")
}
