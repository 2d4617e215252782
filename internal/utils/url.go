package utils

import (
	"net/url"
	"strings"
)

// ValidateURL validates that a URL has an http(s) scheme and a host
func ValidateURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	return parsed.Host != ""
}

// TrimEndpoint removes surrounding whitespace and trailing slashes from a
// model endpoint so tools that append paths get a clean base.
func TrimEndpoint(rawURL string) string {
	return strings.TrimRight(strings.TrimSpace(rawURL), "/")
}

// ExtractHost extracts the host from a URL
func ExtractHost(rawURL string) string {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
