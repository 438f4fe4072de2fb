package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"printlyapi/models"
	"printlyapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CheckoutIn struct {
	JobID       uint   `json:"job_id" validate:"required"`
	Product     string `json:"product" validate:"required,max=50"`
	SizeLabel   string `json:"size_label" validate:"required,max=50"`
	Orientation string `json:"orientation" validate:"omitempty,orientation"`
	Finish      string `json:"finish" validate:"omitempty,max=50"`
	FrameColor  string `json:"frame_color" validate:"omitempty,max=50"`
	Currency    string `json:"currency" validate:"omitempty,max=10"`
}

type CheckoutResponse struct {
	OrderID         uint   `json:"order_id"`
	OrderReference  string `json:"order_reference"`
	VendorSku       string `json:"vendor_sku"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	Currency        string `json:"currency"`
}

type CheckoutController struct {
	Catalog        *services.Catalog
	PaymentService services.PaymentServiceProvider
	URLCache       services.URLCacheServiceProvider
}

func (controller *CheckoutController) Routes(g *echo.Group) {
	g.POST("/checkout", controller.Checkout)
}

// Checkout hands a finished job off to the print vendor. The variant must
// resolve to a single SKU, the job must have produced its print file, and the
// order row is persisted whether the vendor accepted it or not.
func (controller *CheckoutController) Checkout(c echo.Context) error {
	var req CheckoutIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	session := c.Get("currentSession").(models.DesignSession)
	db := c.Get("__db").(*gorm.DB)

	var job models.PrintJob
	result := db.Where("id = ? AND session_id = ?", req.JobID, session.ID).First(&job)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Job not found"})
	}
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch job"})
	}
	if job.Status != models.JobStatusDone {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":   "job_not_done",
			"message": "The design must finish generating before checkout",
		})
	}
	if job.MasterKey == nil || *job.MasterKey == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Job has no print file"})
	}

	variant, err := controller.Catalog.Resolve(req.Product, req.SizeLabel, req.Orientation, req.Finish, req.FrameColor)
	if errors.Is(err, services.ErrVariantNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "variant_not_found"})
	}
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to resolve variant"})
	}

	currencyCode := services.NormalizeCurrency(req.Currency)
	price := controller.Catalog.Price(variant, currencyCode)

	// the vendor prints from the clean master, never the watermarked preview
	imageURL, err := controller.URLCache.GetReadURL(context.Background(), *job.MasterKey)
	if err != nil || imageURL == "" {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to derive print file URL"})
	}

	order := models.FulfillmentOrder{
		SessionID:       session.ID,
		JobID:           job.ID,
		VendorSku:       variant.VendorSku,
		PriceMinorUnits: price,
		Currency:        currencyCode,
		ImageURL:        imageURL,
	}

	reference, err := controller.PaymentService.SubmitOrder(context.Background(), services.VendorOrder{
		VendorSku:       variant.VendorSku,
		PriceMinorUnits: price,
		Currency:        currencyCode,
		ImageURL:        imageURL,
		IdempotencyKey:  fmt.Sprintf("%s-job-%d", session.SessionKey, job.ID),
	})
	if err != nil {
		fmt.Printf("[Job: %v] Vendor order failed: %v\n", job.ID, err)
		sentry.CaptureException(err)
		order.Status = "failed"
		order.ErrorMessage = StrPointer(err.Error())
		if dbErr := db.Create(&order).Error; dbErr != nil {
			sentry.CaptureException(dbErr)
		}
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "vendor_unavailable"})
	}

	order.Status = "submitted"
	order.OrderReference = StrPointer(reference)
	if err := db.Create(&order).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to record order"})
	}

	return c.JSON(http.StatusCreated, CheckoutResponse{
		OrderID:         order.ID,
		OrderReference:  reference,
		VendorSku:       variant.VendorSku,
		PriceMinorUnits: price,
		Currency:        currencyCode,
	})
}
