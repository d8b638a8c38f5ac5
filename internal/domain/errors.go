package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind names a failure reason surfaced to operators.
type ErrorKind string

const (
	KindNetworkFailure  ErrorKind = "network_failure"
	KindBlocked         ErrorKind = "blocked"
	KindParseFailure    ErrorKind = "parse_failure"
	KindTimeout         ErrorKind = "timeout"
	KindUnsupportedSite ErrorKind = "unsupported_site"

	KindInvalidPrice     ErrorKind = "invalid_price"
	KindCurrencyMismatch ErrorKind = "currency_mismatch"

	KindAlreadyChecking ErrorKind = "already_checking"

	KindNotFound     ErrorKind = "not_found"
	KindReadFailure  ErrorKind = "read_failure"
	KindWriteFailure ErrorKind = "write_failure"

	KindCancelled ErrorKind = "cancelled"
	KindUnknown   ErrorKind = "unknown"
)

type ScrapeError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *ScrapeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scrape %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("scrape %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

type NormalizationError struct {
	Kind  ErrorKind
	Value string
	Err   error
}

func (e *NormalizationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("normalize: %s %q", e.Kind, e.Value)
	}
	return fmt.Sprintf("normalize: %s %q: %v", e.Kind, e.Value, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

type ConcurrencyError struct {
	Kind      ErrorKind
	ProductID uint
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("product %d: %s", e.ProductID, e.Kind)
}

type StoreError struct {
	Kind      ErrorKind
	ProductID uint
	Err       error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store product %d: %s", e.ProductID, e.Kind)
	}
	return fmt.Sprintf("store product %d: %s: %v", e.ProductID, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// KindOf maps an error onto the failure taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var scrapeErr *ScrapeError
	if errors.As(err, &scrapeErr) {
		return scrapeErr.Kind
	}
	var normErr *NormalizationError
	if errors.As(err, &normErr) {
		return normErr.Kind
	}
	var concErr *ConcurrencyError
	if errors.As(err, &concErr) {
		return concErr.Kind
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}

var kindDescriptions = map[ErrorKind]string{
	KindNetworkFailure:   "the store could not be reached",
	KindBlocked:          "the store blocked the request",
	KindParseFailure:     "the product page could not be read",
	KindTimeout:          "the store took too long to respond",
	KindUnsupportedSite:  "this store is not supported",
	KindInvalidPrice:     "the page showed a price that could not be parsed",
	KindCurrencyMismatch: "the page showed an unexpected currency",
	KindAlreadyChecking:  "a check is already running for this product",
	KindNotFound:         "product not found",
	KindReadFailure:      "the database could not be read",
	KindWriteFailure:     "the result could not be saved",
	KindCancelled:        "the check was cancelled",
}

// Describe returns a short explanation suitable for end users.
func (k ErrorKind) Describe() string {
	if d, ok := kindDescriptions[k]; ok {
		return d
	}
	return "something went wrong"
}
