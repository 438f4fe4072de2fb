package models

// FulfillmentOrder records one checkout handoff to the payment/print vendor.
type FulfillmentOrder struct {
	JsonModel
	SessionID uint          `gorm:"index" json:"session_id"`
	Session   DesignSession `json:"-"`
	JobID     uint          `json:"job_id"`
	Job       PrintJob      `json:"-"`

	VendorSku       string `json:"vendor_sku"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	Currency        string `json:"currency"`
	ImageURL        string `json:"image_url"`

	OrderReference *string `json:"order_reference"`
	Status         string  `json:"status"` // submitted, failed
	ErrorMessage   *string `json:"error_message"`
}
