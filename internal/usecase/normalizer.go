package usecase

import (
	"errors"
	"strings"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/NasaVasa/itemwatcher/internal/money"
)

var outOfStockSignals = []string{"out of stock", "currently unavailable", "unavailable", "sold out", "coming soon", "notify me"}

// Normalize validates an adapter's raw result and turns it into an
// Observation priced in minor units of expectedCurrency.
func Normalize(raw domain.RawObservation, expectedCurrency string, productID uint, at time.Time) (domain.Observation, error) {
	currency, err := normalizeCurrency(raw.CurrencyText, expectedCurrency)
	if err != nil {
		return domain.Observation{}, err
	}

	price, err := parseOptionalPrice(raw.PriceText, currency)
	if err != nil {
		return domain.Observation{}, err
	}

	original, err := parseOptionalPrice(raw.OriginalPriceText, currency)
	if err != nil {
		return domain.Observation{}, err
	}
	if original != nil && (price == nil || *original <= *price) {
		original = nil
	}

	return domain.Observation{
		ProductID:     productID,
		ObservedAt:    at,
		Price:         price,
		OriginalPrice: original,
		Currency:      currency,
		InStock:       coerceStock(raw.InStock, raw.StockText, price != nil),
		Title:         strings.Join(strings.Fields(raw.Title), " "),
		Seller:        strings.TrimSpace(raw.Seller),
	}, nil
}

// ParsePrice parses user-entered price text, e.g. a target price, into minor units.
func ParsePrice(text, currency string) (int64, error) {
	minor, err := money.ParseMinor(text, currency)
	if err != nil {
		return 0, &domain.NormalizationError{Kind: domain.KindInvalidPrice, Value: text, Err: err}
	}
	return minor, nil
}

func parseOptionalPrice(text, currency string) (*int64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	minor, err := ParsePrice(text, currency)
	if err != nil {
		return nil, err
	}
	return &minor, nil
}

func normalizeCurrency(text, expected string) (string, error) {
	expected = strings.ToUpper(strings.TrimSpace(expected))
	if strings.TrimSpace(text) == "" {
		return expected, nil
	}
	got := money.CurrencyOf(text)
	if got == "" {
		return "", &domain.NormalizationError{Kind: domain.KindCurrencyMismatch, Value: text, Err: errors.New("unrecognized currency")}
	}
	if expected != "" && got != expected {
		return "", &domain.NormalizationError{Kind: domain.KindCurrencyMismatch, Value: text, Err: errors.New("expected " + expected)}
	}
	return got, nil
}

// coerceStock folds the different stock signals into one flag. A page without
// a price is never in stock; text that names no out-of-stock signal counts as
// in stock.
func coerceStock(explicit *bool, text string, hasPrice bool) bool {
	if !hasPrice {
		return false
	}
	if explicit != nil {
		return *explicit
	}
	lower := strings.ToLower(text)
	for _, signal := range outOfStockSignals {
		if strings.Contains(lower, signal) {
			return false
		}
	}
	return true
}
