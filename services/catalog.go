package services

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"printlyapi/models"
	"sort"
	"strings"

	"golang.org/x/text/currency"
)

//go:embed catalog.json
var catalogData []byte

// ErrVariantNotFound is the expected miss outcome of a resolve. Callers use it
// to grey out UI options, it is never an alerting condition.
var ErrVariantNotFound = errors.New("catalog variant not found")

type variantKey struct {
	Product     string
	SizeLabel   string
	Orientation string
	Finish      string
	FrameColor  string
}

// Catalog is the read-only product/variant table. Loaded once at startup,
// never mutated afterwards, safe for concurrent lookups without locking.
type Catalog struct {
	products map[string]models.CatalogProduct
	index    map[variantKey]models.CatalogVariant
}

// LoadCatalog parses the embedded catalog and indexes every variant by its
// full attribute tuple. A duplicate tuple is an authoring error and fails the
// load, lookups never have to disambiguate.
func LoadCatalog() (*Catalog, error) {
	return parseCatalog(catalogData)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var products []models.CatalogProduct
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog data: %v", err)
	}

	catalog := &Catalog{
		products: make(map[string]models.CatalogProduct),
		index:    make(map[variantKey]models.CatalogVariant),
	}

	for _, product := range products {
		if _, exists := catalog.products[product.Name]; exists {
			return nil, fmt.Errorf("duplicate catalog product: %s", product.Name)
		}
		catalog.products[product.Name] = product

		for _, variant := range product.Variants {
			key := variantKey{
				Product:     product.Name,
				SizeLabel:   variant.SizeLabel,
				Orientation: variant.Orientation,
				Finish:      variant.Finish,
				FrameColor:  variant.FrameColor,
			}
			if _, exists := catalog.index[key]; exists {
				return nil, fmt.Errorf("duplicate catalog variant: %s %s %s %s %s",
					product.Name, variant.SizeLabel, variant.Orientation, variant.Finish, variant.FrameColor)
			}
			catalog.index[key] = variant
		}
	}

	return catalog, nil
}

// Product returns the product family metadata, including its mockup template
// if one is configured.
func (c *Catalog) Product(name string) (models.CatalogProduct, bool) {
	product, ok := c.products[name]
	return product, ok
}

// ProductNames lists every orderable product family.
func (c *Catalog) ProductNames() []string {
	names := make([]string, 0, len(c.products))
	for name := range c.products {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve finds the single variant matching all provided fields exactly.
// Finish and frame color are optional attributes; an empty value only matches
// variants that do not carry that attribute.
func (c *Catalog) Resolve(product, sizeLabel, orientation, finish, frameColor string) (models.CatalogVariant, error) {
	key := variantKey{
		Product:     product,
		SizeLabel:   sizeLabel,
		Orientation: orientation,
		Finish:      finish,
		FrameColor:  frameColor,
	}
	variant, ok := c.index[key]
	if !ok {
		return models.CatalogVariant{}, ErrVariantNotFound
	}
	return variant, nil
}

// Price returns the variant price in minor units for the requested currency.
// Unknown currency falls back to GBP, and to 0 when even GBP is absent. Never
// errors, a missing price disables a purchase path rather than breaking it.
func (c *Catalog) Price(variant models.CatalogVariant, currencyCode string) int64 {
	code := NormalizeCurrency(currencyCode)
	if price, ok := variant.Prices[code]; ok {
		return price
	}
	if price, ok := variant.Prices["GBP"]; ok {
		return price
	}
	return 0
}

// NormalizeCurrency maps free-form currency input ("gbp", " USD ") to its ISO
// 4217 code. Unparseable input normalizes to GBP.
func NormalizeCurrency(code string) string {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "GBP"
	}
	return unit.String()
}
