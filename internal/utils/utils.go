package utils

import "strings"

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// ContainsAnyFold reports whether s contains any of tokens, ignoring case
func ContainsAnyFold(s string, tokens ...string) bool {
	lower := strings.ToLower(s)
	for _, tok := range tokens {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}
