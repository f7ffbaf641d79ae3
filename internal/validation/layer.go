package validation

import (
	"fmt"
	"net/url"
	"strings"

	"fusionforge/internal/models"
)

const (
	MaxTitleLength   = 160
	MaxContentLength = 4000
)

// ValidateTitle validates a fusion post title.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("title is required")
	}
	if len(trimmed) > MaxTitleLength {
		return fmt.Errorf("title must be at most %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateMediaURL validates that a media URL is absolute http(s).
func ValidateMediaURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("media URL is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("media URL must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("media URL must be absolute")
	}
	return nil
}

// ValidateLayerContent validates the content/media combination for a layer of
// the given type. Content may be empty only when a media URL is present.
func ValidateLayerContent(layerType models.LayerType, content string, mediaURL *string) error {
	if !layerType.Valid() {
		return fmt.Errorf("unknown layer type %q", layerType)
	}

	if len(content) > MaxContentLength {
		return fmt.Errorf("content must be at most %d characters", MaxContentLength)
	}

	hasMedia := mediaURL != nil && strings.TrimSpace(*mediaURL) != ""
	if strings.TrimSpace(content) == "" && !hasMedia {
		return fmt.Errorf("content is required when no media URL is provided")
	}

	if layerType.IsMedia() && !hasMedia {
		return fmt.Errorf("%s layers require a media URL", layerType)
	}

	if hasMedia {
		if err := ValidateMediaURL(*mediaURL); err != nil {
			return err
		}
	}

	return nil
}

// ValidateSeed validates the seed fields of a new fusion post. The seed is
// shaped like a layer, so the same content rules apply.
func ValidateSeed(seedType models.LayerType, seedContent string) error {
	if !seedType.Valid() {
		return fmt.Errorf("unknown seed type %q", seedType)
	}
	if strings.TrimSpace(seedContent) == "" {
		return fmt.Errorf("seed content is required")
	}
	if len(seedContent) > MaxContentLength {
		return fmt.Errorf("seed content must be at most %d characters", MaxContentLength)
	}
	return nil
}
