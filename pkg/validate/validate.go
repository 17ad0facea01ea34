// Package validate holds the input checks performed before anything is sent
// to the identity service.
package validate

import (
	"regexp"
	"strings"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	protocolStrip = regexp.MustCompile(`(?i)(javascript|data|vbscript):`)
	handlerStrip  = regexp.MustCompile(`(?i)on\w+=`)
)

const maxInputLength = 500

// NormalizeEmail lowercases and trims the address before validation so the
// same mailbox always hashes to the same cooldown behavior.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address has a plausible mailbox@host.tld
// shape. Anything stricter is the identity service's call.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// SanitizeString strips injection-prone characters from free-form input such
// as display names and caps its length.
func SanitizeString(input string) string {
	if input == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '\'', '"', '&':
			return -1
		}
		return r
	}, input)
	cleaned = protocolStrip.ReplaceAllString(cleaned, "")
	cleaned = handlerStrip.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > maxInputLength {
		cleaned = cleaned[:maxInputLength]
	}
	return cleaned
}
