package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/NasaVasa/itemwatcher/internal/domain"
)

var (
	ErrInvalidURL      = errors.New("invalid url")
	ErrUnsupportedSite = errors.New("unsupported site")
	ErrInvalidTarget   = errors.New("invalid target price")
	ErrProductNotFound = errors.New("product not found")
	ErrCheckInProgress = errors.New("check in progress")
)

const defaultHistoryLimit = 20

type ProductSummary struct {
	Product     domain.Product
	LowestPrice *int64
}

// ProductUsecase manages the tracked product list on behalf of the CLI, the
// bot and the HTTP API.
type ProductUsecase struct {
	products domain.ProductRepository
	store    domain.HistoryStore
	adapters domain.AdapterResolver
	watch    *WatchUsecase
}

func NewProductUsecase(products domain.ProductRepository, store domain.HistoryStore, adapters domain.AdapterResolver, watch *WatchUsecase) *ProductUsecase {
	return &ProductUsecase{products: products, store: store, adapters: adapters, watch: watch}
}

// AddProduct starts tracking a URL and runs its first check. Re-adding a
// removed URL reactivates it with its history intact.
func (u *ProductUsecase) AddProduct(ctx context.Context, rawURL string, targetText string) (*domain.Product, domain.CheckResult, error) {
	productURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, domain.CheckResult{}, err
	}
	adapter, ok := u.adapters.Resolve(productURL)
	if !ok {
		return nil, domain.CheckResult{}, ErrUnsupportedSite
	}
	target, err := parseTarget(targetText, adapter.Currency())
	if err != nil {
		return nil, domain.CheckResult{}, err
	}

	product := &domain.Product{
		URL:         productURL,
		Retailer:    adapter.Retailer(),
		Currency:    adapter.Currency(),
		TargetPrice: target,
		Active:      true,
	}
	if err := u.products.Save(ctx, product); err != nil {
		return nil, domain.CheckResult{}, err
	}

	result := u.watch.Check(ctx, product.ID)
	if refreshed, err := u.store.GetProduct(ctx, product.ID); err == nil {
		product = refreshed
	}
	return product, result, nil
}

func (u *ProductUsecase) ListProducts(ctx context.Context) ([]ProductSummary, error) {
	products, err := u.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]ProductSummary, 0, len(products))
	for _, product := range products {
		lowest, err := u.products.LowestPrice(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ProductSummary{Product: product, LowestPrice: lowest})
	}
	return summaries, nil
}

func (u *ProductUsecase) RemoveProduct(ctx context.Context, productID uint) (*domain.Product, error) {
	product, err := u.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := u.products.SoftDelete(ctx, productID); err != nil {
		return nil, mapNotFound(err)
	}
	return product, nil
}

// SetTarget changes the target price; an empty text clears it. Changing the
// target re-arms the target-reached alert. It fails with ErrCheckInProgress
// while a check of the same product is running.
func (u *ProductUsecase) SetTarget(ctx context.Context, productID uint, targetText string) (*domain.Product, error) {
	release, ok := u.watch.locks.tryAcquire(productID)
	if !ok {
		return nil, ErrCheckInProgress
	}
	defer release()

	product, err := u.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	target, err := parseTarget(targetText, product.Currency)
	if err != nil {
		return nil, err
	}
	if err := u.products.SetTarget(ctx, productID, target); err != nil {
		return nil, mapNotFound(err)
	}
	product.TargetPrice = target
	product.TargetAlertSent = false
	return product, nil
}

// History returns the product's observations, most recent first.
func (u *ProductUsecase) History(ctx context.Context, productID uint, limit int) (*domain.Product, []domain.Observation, *int64, error) {
	product, err := u.getProduct(ctx, productID)
	if err != nil {
		return nil, nil, nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	history, err := u.store.GetHistory(ctx, productID, limit)
	if err != nil {
		return nil, nil, nil, err
	}
	lowest, err := u.products.LowestPrice(ctx, productID)
	if err != nil {
		return nil, nil, nil, err
	}
	return product, history, lowest, nil
}

func (u *ProductUsecase) TestURL(ctx context.Context, rawURL string) (domain.Observation, domain.SiteAdapter, error) {
	productURL, err := normalizeURL(rawURL)
	if err != nil {
		return domain.Observation{}, nil, err
	}
	if _, ok := u.adapters.Resolve(productURL); !ok {
		return domain.Observation{}, nil, ErrUnsupportedSite
	}
	return u.watch.Preview(ctx, productURL)
}

func (u *ProductUsecase) getProduct(ctx context.Context, productID uint) (*domain.Product, error) {
	product, err := u.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return product, nil
}

func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", ErrInvalidURL
	}
	parsed.Fragment = ""
	return parsed.String(), nil
}

func parseTarget(text, currency string) (*int64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	minor, err := ParsePrice(text, currency)
	if err != nil {
		return nil, ErrInvalidTarget
	}
	return &minor, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrProductNotFound
	}
	return err
}
