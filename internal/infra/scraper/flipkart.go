package scraper

import (
	"context"
	"regexp"
	"strings"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/PuerkitoBio/goquery"
)

var (
	flipkartPriceSelectors = []string{"._30jeq3", ".Nx9bqj", "._1_WHN1", "div._16Jk6d"}
	flipkartMRPSelectors   = []string{"._3I9_wc", ".yRaY8j", "._2p6lqe"}

	barePricePattern    = regexp.MustCompile(`^₹[\d,]+(\.\d{1,2})?$`)
	offerContextPattern = regexp.MustCompile(`(?i)bank offer|exchange|emi|lowest price|buy at`)
	flipkartOOSPattern  = regexp.MustCompile(`(?i)currently unavailable|out of stock|coming soon|sold out`)
	flipkartTitleSuffix = regexp.MustCompile(`(?i)\s*[-|].*flipkart.*$`)
)

// Flipkart reads product pages whose markup uses generated class names. It
// tries the known classes first and falls back to scanning for bare rupee
// amounts.
type Flipkart struct {
	fetcher *Fetcher
}

func NewFlipkart(fetcher *Fetcher) *Flipkart {
	return &Flipkart{fetcher: fetcher}
}

func (f *Flipkart) Retailer() string { return "flipkart" }

func (f *Flipkart) Currency() string { return "INR" }

func (f *Flipkart) Scrape(ctx context.Context, url string) (domain.RawObservation, error) {
	doc, err := f.fetcher.Fetch(ctx, url)
	if err != nil {
		return domain.RawObservation{}, err
	}
	return parseFlipkart(doc, url)
}

func parseFlipkart(doc *goquery.Document, url string) (domain.RawObservation, error) {
	raw := domain.RawObservation{
		Title:  flipkartTitle(doc),
		Seller: firstText(doc, "#sellerName span span", "._1RLviY"),
	}

	raw.PriceText = firstText(doc, flipkartPriceSelectors...)
	raw.OriginalPriceText = firstText(doc, flipkartMRPSelectors...)
	if raw.PriceText == "" {
		price, mrp := scanBarePrices(doc)
		raw.PriceText = price
		if raw.OriginalPriceText == "" {
			raw.OriginalPriceText = mrp
		}
	}

	if match := flipkartOOSPattern.FindString(doc.Find("body").Text()); match != "" {
		outOfStock := false
		raw.InStock = &outOfStock
		raw.StockText = match
	}

	if raw.Title == "" && raw.PriceText == "" && raw.InStock == nil {
		return domain.RawObservation{}, &domain.ScrapeError{Kind: domain.KindParseFailure, URL: url}
	}
	return raw, nil
}

func flipkartTitle(doc *goquery.Document) string {
	if title := firstText(doc, "h1", ".B_NuCI", "._35KyD6"); title != "" {
		return title
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return strings.TrimSpace(flipkartTitleSuffix.ReplaceAllString(title, ""))
}

// scanBarePrices finds the first standalone rupee amount outside offer blurbs
// and the first struck-through one.
func scanBarePrices(doc *goquery.Document) (price, mrp string) {
	doc.Find("div, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(ownText(s))
		if !barePricePattern.MatchString(text) {
			return true
		}
		if isStruck(s) {
			if mrp == "" {
				mrp = text
			}
		} else if price == "" && !inOfferContext(s) {
			price = text
		}
		return price == "" || mrp == ""
	})
	return price, mrp
}

func inOfferContext(s *goquery.Selection) bool {
	parent := s.Parent()
	if goquery.NodeName(parent) == "body" {
		return false
	}
	return offerContextPattern.MatchString(parent.Text())
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}

func isStruck(s *goquery.Selection) bool {
	if s.Closest("del, s, strike").Length() > 0 {
		return true
	}
	style, _ := s.Attr("style")
	return strings.Contains(strings.ReplaceAll(style, " ", ""), "line-through")
}
