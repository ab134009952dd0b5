package domain

import (
	"errors"
	"fmt"
)

// Category is the normalized error classification surfaced to callers.
type Category string

const (
	CategoryNone               Category = ""
	CategoryNoProviderSelected Category = "no_provider_selected"
	CategoryProviderInactive   Category = "provider_inactive"
	CategoryDuplicateModel     Category = "duplicate_model"
	CategoryRateLimited        Category = "rate_limited"
	CategoryCredentialInvalid  Category = "credential_invalid"
	CategoryUsageLimited       Category = "usage_limited"
	CategoryNetworkFailure     Category = "network_failure"
	CategoryUnknown            Category = "unknown_provider_error"
)

// Sentinel returns the sentinel error matching the category.
func (c Category) Sentinel() error {
	switch c {
	case CategoryNoProviderSelected:
		return ErrNoProviderSelected
	case CategoryProviderInactive:
		return ErrProviderInactive
	case CategoryDuplicateModel:
		return ErrDuplicateModel
	case CategoryRateLimited:
		return ErrRateLimited
	case CategoryCredentialInvalid:
		return ErrCredentialInvalid
	case CategoryUsageLimited:
		return ErrUsageLimited
	case CategoryNetworkFailure:
		return ErrNetworkFailure
	default:
		return ErrUnknownProvider
	}
}

// CategoryOf maps an error chain back to its category.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	switch {
	case errors.Is(err, ErrNoProviderSelected):
		return CategoryNoProviderSelected
	case errors.Is(err, ErrProviderInactive), errors.Is(err, ErrMissingAPIKey):
		return CategoryProviderInactive
	case errors.Is(err, ErrDuplicateModel):
		return CategoryDuplicateModel
	case errors.Is(err, ErrRateLimited):
		return CategoryRateLimited
	case errors.Is(err, ErrCredentialInvalid):
		return CategoryCredentialInvalid
	case errors.Is(err, ErrUsageLimited):
		return CategoryUsageLimited
	case errors.Is(err, ErrNetworkFailure):
		return CategoryNetworkFailure
	}
	return CategoryUnknown
}

// Classification is the verdict of the error classifier.
// When both keyword sets match, IsCredentialFatal decides auto-disable while
// IsUsageLimited still marks the key itself as valid.
type Classification struct {
	Category          Category `json:"category"`
	IsCredentialFatal bool     `json:"is_credential_fatal"`
	IsUsageLimited    bool     `json:"is_usage_limited"`
}

// SoftSuccess reports a failure that still proves the credentials work.
func (c Classification) SoftSuccess() bool { return c.IsUsageLimited && !c.IsCredentialFatal }

// KeyValid reports whether the credentials should be kept.
func (c Classification) KeyValid() bool { return c.IsUsageLimited }

// ProviderError is a failed provider call with its classification attached.
type ProviderError struct {
	Provider       ProviderID
	Model          string
	Status         int
	Message        string
	Raw            []byte
	Category       Category
	Classification Classification
	Attempts       int
	Err            error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%s, status %d): %s", e.Category.Sentinel(), e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category.Sentinel(), e.Provider, e.Message)
}

// Unwrap exposes both the category sentinel and the transport cause.
func (e *ProviderError) Unwrap() []error {
	errs := []error{e.Category.Sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
