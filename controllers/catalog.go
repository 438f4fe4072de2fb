package controllers

import (
	"errors"
	"net/http"

	"printlyapi/models"
	"printlyapi/services"

	"github.com/labstack/echo/v4"
)

type ProductSummary struct {
	Name      string                  `json:"name"`
	HasMockup bool                    `json:"has_mockup"`
	Variants  []models.CatalogVariant `json:"variants"`
}

type ResolveResponse struct {
	VendorSku string           `json:"vendor_sku"`
	Prices    map[string]int64 `json:"prices"`
}

type CatalogController struct {
	Catalog *services.Catalog
}

func (controller *CatalogController) Routes(g *echo.Group) {
	g.GET("/products", controller.Products)
	g.GET("/resolve", controller.ResolveVariant)
}

func (controller *CatalogController) Products(c echo.Context) error {
	names := controller.Catalog.ProductNames()
	summaries := make([]ProductSummary, 0, len(names))
	for _, name := range names {
		product, _ := controller.Catalog.Product(name)
		summaries = append(summaries, ProductSummary{
			Name:      product.Name,
			HasMockup: product.Mockup != nil,
			Variants:  product.Variants,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"products": summaries})
}

// ResolveVariant maps a full attribute tuple to a vendor SKU. A miss is a
// plain 404, the storefront uses it to grey out unavailable combinations.
func (controller *CatalogController) ResolveVariant(c echo.Context) error {
	product := c.QueryParam("product")
	sizeLabel := c.QueryParam("size")
	if product == "" || sizeLabel == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "product and size are required"})
	}

	variant, err := controller.Catalog.Resolve(
		product,
		sizeLabel,
		c.QueryParam("orientation"),
		c.QueryParam("finish"),
		c.QueryParam("frame_color"),
	)
	if errors.Is(err, services.ErrVariantNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "variant_not_found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to resolve variant"})
	}

	return c.JSON(http.StatusOK, ResolveResponse{
		VendorSku: variant.VendorSku,
		Prices:    variant.Prices,
	})
}
