package scraper

import (
	"context"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/PuerkitoBio/goquery"
)

var (
	amazonPriceSelectors = []string{
		`.a-price[data-a-color="price"] .a-offscreen`,
		`#corePrice_feature_div .a-offscreen`,
		`#corePriceDisplay_desktop_feature_div .a-offscreen`,
		`#priceblock_ourprice`,
		`#priceblock_dealprice`,
		`.a-price .a-offscreen`,
		`.a-price-whole`,
	}
	amazonMRPSelectors = []string{
		`.a-price[data-a-color="secondary"] .a-offscreen`,
		`.a-price[data-a-strike="true"] .a-offscreen`,
		`.a-text-price .a-offscreen`,
		`#priceblock_mrp`,
		`.basisPrice .a-offscreen`,
	}
)

type Amazon struct {
	fetcher *Fetcher
}

func NewAmazon(fetcher *Fetcher) *Amazon {
	return &Amazon{fetcher: fetcher}
}

func (a *Amazon) Retailer() string { return "amazon" }

func (a *Amazon) Currency() string { return "INR" }

func (a *Amazon) Scrape(ctx context.Context, url string) (domain.RawObservation, error) {
	doc, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return domain.RawObservation{}, err
	}
	return parseAmazon(doc, url)
}

func parseAmazon(doc *goquery.Document, url string) (domain.RawObservation, error) {
	raw := domain.RawObservation{
		Title:             firstText(doc, "#productTitle"),
		PriceText:         firstText(doc, amazonPriceSelectors...),
		OriginalPriceText: firstText(doc, amazonMRPSelectors...),
		CurrencyText:      firstText(doc, `.a-price[data-a-color="price"] .a-price-symbol`, ".a-price-symbol"),
		StockText:         firstText(doc, "#availability"),
		Seller:            firstText(doc, "#sellerProfileTriggerId", "#merchant-info a"),
	}
	if raw.Title == "" && raw.PriceText == "" && raw.StockText == "" {
		return domain.RawObservation{}, &domain.ScrapeError{Kind: domain.KindParseFailure, URL: url}
	}
	return raw, nil
}
