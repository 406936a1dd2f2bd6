package errors

import "fmt"

// EntitlementErrorKind classifies failures inside the entitlement resolution
// engine. Every kind resolves to a documented fallback; none of them is
// allowed to escape the store's public operations.
type EntitlementErrorKind string

const (
	// KindProviderInit: the billing provider failed to bind to the user session.
	// Fallback: free tier, nil entitlements, store stays usable.
	KindProviderInit EntitlementErrorKind = "provider_init"
	// KindProviderFetch: transient provider/network failure fetching customer
	// info. Retried exactly once; second failure degrades to free tier.
	KindProviderFetch EntitlementErrorKind = "provider_fetch"
	// KindCatalogLoad: backend catalog unreachable. Previous catalog retained.
	KindCatalogLoad EntitlementErrorKind = "catalog_load"
	// KindPersistence: durable cache read/write failure. Logged and ignored.
	KindPersistence EntitlementErrorKind = "persistence"
)

// EntitlementError wraps an underlying failure with its classification.
type EntitlementError struct {
	Kind EntitlementErrorKind
	Err  error
}

func (e *EntitlementError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *EntitlementError) Unwrap() error {
	return e.Err
}

// NewProviderInitError wraps a provider session initialization failure.
func NewProviderInitError(err error) *EntitlementError {
	return &EntitlementError{Kind: KindProviderInit, Err: err}
}

// NewProviderFetchError wraps a customer info fetch failure.
func NewProviderFetchError(err error) *EntitlementError {
	return &EntitlementError{Kind: KindProviderFetch, Err: err}
}

// NewCatalogLoadError wraps a catalog read failure.
func NewCatalogLoadError(err error) *EntitlementError {
	return &EntitlementError{Kind: KindCatalogLoad, Err: err}
}

// NewPersistenceError wraps a durable cache failure.
func NewPersistenceError(err error) *EntitlementError {
	return &EntitlementError{Kind: KindPersistence, Err: err}
}
