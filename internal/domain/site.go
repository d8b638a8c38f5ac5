package domain

import "context"

// SiteAdapter scrapes product pages of a single retailer.
type SiteAdapter interface {
	Retailer() string
	Currency() string
	Scrape(ctx context.Context, url string) (RawObservation, error)
}

// AdapterResolver picks the adapter responsible for a product URL.
type AdapterResolver interface {
	Resolve(url string) (SiteAdapter, bool)
}
