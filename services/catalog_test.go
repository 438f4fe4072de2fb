package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalogEmbedded(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"canvas", "framed-print", "mug", "poster"}, catalog.ProductNames())

	poster, ok := catalog.Product("poster")
	require.True(t, ok)
	assert.NotNil(t, poster.Mockup)

	canvas, ok := catalog.Product("canvas")
	require.True(t, ok)
	assert.Nil(t, canvas.Mockup)
}

func TestParseCatalogRejectsDuplicateTuple(t *testing.T) {
	data := []byte(`[
		{
			"name": "poster",
			"variants": [
				{"size_label": "A3", "orientation": "Vertical", "vendor_sku": "POS-A3-V", "prices": {"GBP": 1500}},
				{"size_label": "A3", "orientation": "Vertical", "vendor_sku": "POS-A3-V-DUP", "prices": {"GBP": 1600}}
			]
		}
	]`)
	_, err := parseCatalog(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate catalog variant")
}

func TestParseCatalogRejectsDuplicateProduct(t *testing.T) {
	data := []byte(`[
		{"name": "poster", "variants": []},
		{"name": "poster", "variants": []}
	]`)
	_, err := parseCatalog(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate catalog product")
}

func TestResolveExactMatch(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)

	variant, err := catalog.Resolve("poster", "A3", "Vertical", "", "")
	require.NoError(t, err)
	assert.Equal(t, "POS-A3-V", variant.VendorSku)

	variant, err = catalog.Resolve("mug", "11oz", "Square", "matte", "")
	require.NoError(t, err)
	assert.Equal(t, "MUG-11-MAT", variant.VendorSku)

	variant, err = catalog.Resolve("framed-print", "A3", "Vertical", "", "oak")
	require.NoError(t, err)
	assert.Equal(t, "FRM-A3-V-OAK", variant.VendorSku)
}

func TestResolveMissesAreNotFound(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)

	// size that does not exist
	_, err = catalog.Resolve("poster", "99x99", "Horizontal", "", "")
	assert.ErrorIs(t, err, ErrVariantNotFound)

	// attribute left off a variant that requires it
	_, err = catalog.Resolve("mug", "11oz", "Square", "", "")
	assert.ErrorIs(t, err, ErrVariantNotFound)

	// attribute supplied for a variant that does not carry it
	_, err = catalog.Resolve("poster", "A3", "Vertical", "glossy", "")
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestPriceCurrencyFallback(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)

	matteMug, err := catalog.Resolve("mug", "11oz", "Square", "matte", "")
	require.NoError(t, err)
	glossyMug, err := catalog.Resolve("mug", "11oz", "Square", "glossy", "")
	require.NoError(t, err)

	assert.Equal(t, int64(1400), catalog.Price(glossyMug, "USD"))
	// JPY has no entry, falls back to GBP
	assert.Equal(t, int64(1200), catalog.Price(matteMug, "JPY"))
	// lowercase input normalizes before lookup
	assert.Equal(t, int64(1400), catalog.Price(glossyMug, "usd"))
	// garbage currency falls back to GBP too
	assert.Equal(t, int64(1200), catalog.Price(matteMug, "???"))
}

func TestPriceEmptyTableIsZero(t *testing.T) {
	catalog, err := parseCatalog([]byte(`[
		{"name": "sticker", "variants": [
			{"size_label": "10cm", "orientation": "Square", "vendor_sku": "STK-10", "prices": {}}
		]}
	]`))
	require.NoError(t, err)

	variant, err := catalog.Resolve("sticker", "10cm", "Square", "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), catalog.Price(variant, "GBP"))
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "USD", NormalizeCurrency("usd"))
	assert.Equal(t, "EUR", NormalizeCurrency(" EUR "))
	assert.Equal(t, "GBP", NormalizeCurrency("not-a-currency"))
	assert.Equal(t, "GBP", NormalizeCurrency(""))
}
