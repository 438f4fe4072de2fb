package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// VendorOrder is the handoff payload for one paid print order.
type VendorOrder struct {
	VendorSku       string `json:"vendor_sku"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	Currency        string `json:"currency"`
	ImageURL        string `json:"image_url"`
	IdempotencyKey  string `json:"idempotency_key"`
}

// PaymentServiceProvider hands a finished design off to the print-on-demand
// vendor. Black box from our side: it either returns an order reference or
// fails, payment capture itself happens on the vendor's end.
type PaymentServiceProvider interface {
	SubmitOrder(ctx context.Context, order VendorOrder) (string, error)
}

type PrintVendorService struct{}

type vendorOrderResponse struct {
	OrderReference string `json:"order_reference"`
	Error          string `json:"error"`
}

func (PrintVendorService) SubmitOrder(ctx context.Context, order VendorOrder) (string, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("failed to encode vendor order: %v", err)
	}

	baseURL := GetEnv("PRINT_VENDOR_API_URL", "https://api.printvendor.example.com")
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/v1/orders", bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create vendor request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", os.Getenv("PRINT_VENDOR_API_KEY")))

	client := &http.Client{Timeout: 30 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		fmt.Println("Error submitting vendor order:", err)
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read vendor response: %v", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("vendor order failed, status %d: %s", res.StatusCode, string(body))
	}

	var parsed vendorOrderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse vendor response: %v", err)
	}
	if parsed.OrderReference == "" {
		return "", fmt.Errorf("vendor returned no order reference: %s", parsed.Error)
	}
	return parsed.OrderReference, nil
}
