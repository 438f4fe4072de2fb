package models

// MockupTemplate holds the per-product parameters for the third pipeline stage.
// A product without a template skips the mockup stage entirely.
type MockupTemplate struct {
	Prompt   string  `json:"prompt"`
	SizeHint string  `json:"size_hint"`
	Aspect   float64 `json:"aspect"`
}

// CatalogProduct is one orderable product family (poster, canvas, mug, ...).
type CatalogProduct struct {
	Name     string           `json:"name"`
	Mockup   *MockupTemplate  `json:"mockup,omitempty"`
	Variants []CatalogVariant `json:"variants"`
}

// CatalogVariant is one concrete combination of product attributes mapped to a
// vendor SKU and a per-currency price table (minor units). Loaded from static
// catalog data, immutable at runtime.
type CatalogVariant struct {
	SizeLabel   string           `json:"size_label"`
	Orientation string           `json:"orientation"`
	Finish      string           `json:"finish,omitempty"`
	FrameColor  string           `json:"frame_color,omitempty"`
	VendorSku   string           `json:"vendor_sku"`
	Prices      map[string]int64 `json:"prices"`
}
