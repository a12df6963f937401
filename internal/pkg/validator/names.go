package validator

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	categoryNameRegex = regexp.MustCompile(`^[a-z0-9-]+$`)
	webhookNameRegex  = regexp.MustCompile(`^[a-zA-Z0-9-_ ]+$`)
	hexColorRegex     = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// CategoryName checks an already-lowercased category name.
func CategoryName(name string) error {
	if name == "" {
		return fmt.Errorf("category name must not be empty")
	}
	if len(name) > 50 {
		return fmt.Errorf("category name must be less than 50 characters")
	}
	if !categoryNameRegex.MatchString(name) {
		return fmt.Errorf("category name can only contain lowercase letters, numbers, and hyphens")
	}
	return nil
}

func WebhookName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(name) > 50 {
		return fmt.Errorf("name must be less than 50 characters")
	}
	if !webhookNameRegex.MatchString(name) {
		return fmt.Errorf("name can only contain letters, numbers, spaces, hyphens, and underscores")
	}
	return nil
}

// WebhookURL requires a well-formed https URL; plain http is rejected so
// signed payloads never travel over an insecure transport.
func WebhookURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("must be a valid URL")
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("URL must use HTTPS")
	}
	return nil
}

// HexColor parses a "#RRGGBB" string into its integer value.
func HexColor(s string) (int, error) {
	if !hexColorRegex.MatchString(s) {
		return 0, fmt.Errorf("invalid color format, expected #RRGGBB")
	}
	value, err := strconv.ParseInt(s[1:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color format, expected #RRGGBB")
	}
	return int(value), nil
}
