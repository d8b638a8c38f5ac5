package domain

import "time"

// RawObservation is what a site adapter read off a product page, before any
// parsing or validation.
type RawObservation struct {
	Title             string
	PriceText         string
	OriginalPriceText string
	CurrencyText      string
	InStock           *bool
	StockText         string
	Seller            string
}

// Observation is a single normalized scrape result. Prices are in minor units
// of Currency; Price is nil when the page showed no price.
type Observation struct {
	ID            uint
	ProductID     uint
	ObservedAt    time.Time
	Price         *int64
	OriginalPrice *int64
	Currency      string
	InStock       bool
	Title         string
	Seller        string
}

// DiscountPercent returns the discount against the original price, rounded to
// one decimal, or nil when there is no discount.
func (o Observation) DiscountPercent() *float64 {
	if o.Price == nil || o.OriginalPrice == nil || *o.OriginalPrice <= *o.Price {
		return nil
	}
	pct := float64(*o.OriginalPrice-*o.Price) / float64(*o.OriginalPrice) * 100
	pct = float64(int64(pct*10+0.5)) / 10
	return &pct
}
