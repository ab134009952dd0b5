// Package classify turns provider failures into actionable categories.
//
// Structured signals (HTTP status, vendor error codes) are consulted first.
// Free-text keyword matching is the fallback for vendors that only return a
// message. The same rule serves key verification and translation.
package classify

import (
	"net/http"
	"strings"

	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/provider"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

var usageKeywords = []string{
	"rate limit",
	"quota",
	"usage limit",
	"credit",
	"billing",
	"payment",
	"exceeded",
	"capacity",
}

var credentialKeywords = []string{
	"invalid api key",
	"authentication",
	"not found",
	"insufficient permissions",
}

var credentialCodes = map[string]bool{
	"invalid_api_key":      true,
	"authentication_error": true,
	"permission_error":     true,
	"api_key_invalid":      true,
	"permission_denied":    true,
	"unauthenticated":      true,
	"401":                  true,
	"403":                  true,
}

var usageCodes = map[string]bool{
	"insufficient_quota": true,
	"resource_exhausted": true,
	"billing_error":      true,
	"billing_not_active": true,
	"402":                true,
}

// Message applies the keyword heuristic to a free-text error message.
func Message(msg string) domain.Classification {
	lower := strings.ToLower(msg)
	return verdict(containsAny(lower, credentialKeywords), containsAny(lower, usageKeywords))
}

// FromFailure classifies a parsed provider error. A recognised status or code
// decides on its own; otherwise the message is matched against the keywords.
func FromFailure(f provider.Failure) domain.Classification {
	cred, usage := structured(f)
	if cred || usage {
		return verdict(cred, usage)
	}
	return Message(f.Message)
}

func structured(f provider.Failure) (cred, usage bool) {
	switch f.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		cred = true
	case http.StatusPaymentRequired:
		usage = true
	}
	for _, c := range []string{f.Code, f.Type} {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if credentialCodes[c] {
			cred = true
		}
		if usageCodes[c] {
			usage = true
		}
	}
	return cred, usage
}

// verdict applies the precedence rule: credential decides the category and
// auto-disable, usage still marks the key itself as valid.
func verdict(cred, usage bool) domain.Classification {
	c := domain.Classification{IsCredentialFatal: cred, IsUsageLimited: usage}
	switch {
	case cred:
		c.Category = domain.CategoryCredentialInvalid
	case usage:
		c.Category = domain.CategoryUsageLimited
	default:
		c.Category = domain.CategoryUnknown
	}
	return c
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
