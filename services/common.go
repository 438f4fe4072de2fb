package services

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var allowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".heic", ".heif", ".webp"}

// IsAllowedReferenceFile checks an uploaded reference image filename before we
// hand out a presigned upload URL for it.
func IsAllowedReferenceFile(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	return slices.Contains(allowedImageExtensions, ext)
}

func StrPointer(str string) *string {
	if str == "" {
		return nil
	}
	return &str
}

// NilSafe dereferences an optional string for response payloads.
func NilSafe(str *string) string {
	if str == nil {
		return ""
	}
	return *str
}

func ReadFileFromUrl(url string) ([]byte, error) {
	httpClient := &http.Client{}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %v", err)
	}

	// Set headers to prevent caching
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch file, status code: %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	return content, nil
}

func GetEnv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}

func DecodeBase64EnvPrivateKey(envKey string) (string, error) {
	base64Key := os.Getenv(envKey)
	if base64Key == "" {
		return "", fmt.Errorf("%s environment variable is not set", envKey)
	}

	decodedBytes, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 private key: %v", err)
	}

	return string(decodedBytes), nil
}
