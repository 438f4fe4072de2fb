package services

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// EnsureAspect center-crops an image to the target aspect ratio (width/height).
// The model usually honors the ratio instruction in the prompt, but printed
// goods need the exact ratio, so the crop runs on every master render.
// - imageBytes: The input image as a byte slice.
// - targetAspect: The desired width/height ratio, must be positive.
// - tolerance: Relative deviation (0.0-1.0) under which the image passes unchanged.
func EnsureAspect(imageBytes []byte, targetAspect float64, tolerance float64) ([]byte, error) {
	if targetAspect <= 0 {
		return nil, fmt.Errorf("targetAspect must be positive")
	}
	if tolerance < 0.0 || tolerance > 1.0 {
		return nil, fmt.Errorf("tolerance must be between 0.0 and 1.0")
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has zero dimension")
	}

	currentAspect := float64(width) / float64(height)
	if math.Abs(currentAspect-targetAspect)/targetAspect <= tolerance {
		// Close enough, return the original bytes untouched
		return imageBytes, nil
	}

	// Crop the longer axis, keep the center
	cropWidth, cropHeight := width, height
	if currentAspect > targetAspect {
		cropWidth = int(math.Round(float64(height) * targetAspect))
	} else {
		cropHeight = int(math.Round(float64(width) / targetAspect))
	}
	cropped := imaging.CropCenter(img, cropWidth, cropHeight)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image to png: %w", err)
	}
	return buf.Bytes(), nil
}
