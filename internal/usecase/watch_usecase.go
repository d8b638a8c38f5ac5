package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type WatchConfig struct {
	ScrapeTimeout       time.Duration
	DispatchTimeout     time.Duration
	MaxConcurrentChecks int
}

// WatchUsecase checks tracked products: scrape, normalize, classify, commit,
// then alert.
type WatchUsecase struct {
	store      domain.HistoryStore
	adapters   domain.AdapterResolver
	dispatcher domain.AlertDispatcher
	cfg        WatchConfig
	logger     *zap.Logger
	locks      *checkLocks
	now        func() time.Time
}

func NewWatchUsecase(store domain.HistoryStore, adapters domain.AdapterResolver, dispatcher domain.AlertDispatcher, cfg WatchConfig, logger *zap.Logger) *WatchUsecase {
	if cfg.ScrapeTimeout <= 0 {
		cfg.ScrapeTimeout = 60 * time.Second
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 15 * time.Second
	}
	if cfg.MaxConcurrentChecks <= 0 {
		cfg.MaxConcurrentChecks = 4
	}
	return &WatchUsecase{
		store:      store,
		adapters:   adapters,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		locks:      newCheckLocks(),
		now:        time.Now,
	}
}

// Check runs one check of a product. If another check of the same product is
// in flight it returns an AlreadyChecking result immediately. Once started, a
// check ignores cancellation of ctx and is bounded by the scrape timeout only.
func (u *WatchUsecase) Check(ctx context.Context, productID uint) domain.CheckResult {
	result := domain.CheckResult{ProductID: productID, StartedAt: u.now()}

	release, ok := u.locks.tryAcquire(productID)
	if !ok {
		result.Err = &domain.ConcurrencyError{Kind: domain.KindAlreadyChecking, ProductID: productID}
		u.logger.Info("check skipped", zap.Uint("product_id", productID), zap.String("kind", string(domain.KindAlreadyChecking)))
		return result
	}
	defer release()

	u.check(context.WithoutCancel(ctx), &result)
	result.Duration = u.now().Sub(result.StartedAt)
	return result
}

func (u *WatchUsecase) check(ctx context.Context, result *domain.CheckResult) {
	product, err := u.store.GetProduct(ctx, result.ProductID)
	if err == nil && !product.Active {
		err = domain.ErrNotFound
	}
	if err != nil {
		result.Err = storeError(result.ProductID, err, domain.KindReadFailure)
		u.logger.Warn("check failed", zap.Uint("product_id", result.ProductID), zap.String("kind", string(domain.KindOf(result.Err))), zap.Error(err))
		return
	}

	obs, err := u.observe(ctx, *product)
	if err != nil {
		result.Err = err
		var normErr *domain.NormalizationError
		if errors.As(err, &normErr) {
			u.logger.Warn("normalization failed", zap.Uint("product_id", product.ID), zap.String("kind", string(normErr.Kind)), zap.Error(err))
		} else {
			u.logger.Warn("scrape failed", zap.Uint("product_id", product.ID), zap.String("url", product.URL), zap.String("kind", string(domain.KindOf(err))), zap.Error(err))
		}
		return
	}

	transitions, targetSent := classify(*product, obs)

	if err := u.store.AppendObservationAndUpdateProduct(ctx, product.ID, &obs, targetSent); err != nil {
		result.Err = storeError(product.ID, err, domain.KindWriteFailure)
		u.logger.Error("commit failed", zap.Uint("product_id", product.ID), zap.String("kind", string(domain.KindOf(result.Err))), zap.Error(err))
		return
	}
	result.Observation = &obs
	result.Transitions = transitions

	u.logger.Info(
		"check complete",
		zap.Uint("product_id", product.ID),
		zap.String("transitions", transitions.String()),
		zap.Int64p("price", obs.Price),
		zap.Bool("in_stock", obs.InStock),
	)

	for _, kind := range transitions.Alertable() {
		event := domain.AlertEvent{
			ID:          uuid.NewString(),
			ProductID:   product.ID,
			Title:       obs.Title,
			URL:         product.URL,
			Kind:        kind,
			OldPrice:    product.LastPrice,
			NewPrice:    obs.Price,
			TargetPrice: product.TargetPrice,
			Currency:    obs.Currency,
			At:          obs.ObservedAt,
		}
		if event.Title == "" {
			event.Title = product.Title
		}
		result.Deliveries = append(result.Deliveries, u.dispatch(ctx, event))
	}
}

// Preview scrapes and normalizes a URL without touching the store.
func (u *WatchUsecase) Preview(ctx context.Context, url string) (domain.Observation, domain.SiteAdapter, error) {
	adapter, ok := u.adapters.Resolve(url)
	if !ok {
		return domain.Observation{}, nil, &domain.ScrapeError{Kind: domain.KindUnsupportedSite, URL: url}
	}
	obs, err := u.observe(ctx, domain.Product{URL: url, Currency: adapter.Currency()})
	return obs, adapter, err
}

func (u *WatchUsecase) observe(ctx context.Context, product domain.Product) (domain.Observation, error) {
	adapter, ok := u.adapters.Resolve(product.URL)
	if !ok {
		return domain.Observation{}, &domain.ScrapeError{Kind: domain.KindUnsupportedSite, URL: product.URL}
	}
	raw, err := u.scrape(ctx, adapter, product.URL)
	if err != nil {
		return domain.Observation{}, err
	}
	currency := product.Currency
	if currency == "" {
		currency = adapter.Currency()
	}
	return Normalize(raw, currency, product.ID, u.now())
}

// scrape enforces the outer timeout even when an adapter ignores its context.
func (u *WatchUsecase) scrape(ctx context.Context, adapter domain.SiteAdapter, url string) (domain.RawObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.ScrapeTimeout)
	defer cancel()

	type outcome struct {
		raw domain.RawObservation
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &domain.ScrapeError{Kind: domain.KindParseFailure, URL: url, Err: fmt.Errorf("adapter panic: %v", r)}}
			}
		}()
		raw, err := adapter.Scrape(ctx, url)
		done <- outcome{raw: raw, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return domain.RawObservation{}, classifyScrapeError(url, out.err)
		}
		return out.raw, nil
	case <-ctx.Done():
		return domain.RawObservation{}, &domain.ScrapeError{Kind: domain.KindTimeout, URL: url, Err: ctx.Err()}
	}
}

func (u *WatchUsecase) dispatch(ctx context.Context, event domain.AlertEvent) (outcome domain.DeliveryOutcome) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.DispatchTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			outcome = domain.DeliveryOutcome{Kind: event.Kind, Reason: fmt.Sprintf("dispatcher panic: %v", r)}
		}
		if !outcome.Delivered {
			u.logger.Warn("alert not delivered", zap.Uint("product_id", event.ProductID), zap.String("transition", string(event.Kind)), zap.String("reason", outcome.Reason))
		}
	}()

	outcome = u.dispatcher.Dispatch(ctx, event)
	outcome.Kind = event.Kind
	return outcome
}

// CheckAll checks every active product with bounded parallelism. Cancelling
// ctx stops new checks from starting; checks already running complete.
func (u *WatchUsecase) CheckAll(ctx context.Context) domain.BatchResult {
	batch := domain.BatchResult{RunID: uuid.NewString()}
	logger := u.logger.With(zap.String("run_id", batch.RunID))

	products, err := u.store.ListActive(ctx)
	if err != nil {
		batch.ListErr = storeError(0, err, domain.KindReadFailure)
		logger.Error("failed to list active products", zap.Error(err))
		return batch
	}
	logger.Info("batch check start", zap.Int("products", len(products)))

	batch.Results = make([]domain.CheckResult, len(products))
	var g errgroup.Group
	g.SetLimit(u.cfg.MaxConcurrentChecks)
	for i, product := range products {
		i, product := i, product
		if ctx.Err() != nil {
			batch.Results[i] = domain.CheckResult{ProductID: product.ID, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				batch.Results[i] = domain.CheckResult{ProductID: product.ID, Err: ctx.Err()}
				return nil
			}
			batch.Results[i] = u.Check(ctx, product.ID)
			return nil
		})
	}
	_ = g.Wait()

	checked, failed, skipped, alerts := batch.Summary()
	logger.Info("batch check complete", zap.Int("checked", checked), zap.Int("failed", failed), zap.Int("skipped", skipped), zap.Int("alerts", alerts))
	return batch
}

func classifyScrapeError(url string, err error) error {
	var scrapeErr *domain.ScrapeError
	if errors.As(err, &scrapeErr) {
		return scrapeErr
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.ScrapeError{Kind: domain.KindTimeout, URL: url, Err: err}
	}
	return &domain.ScrapeError{Kind: domain.KindNetworkFailure, URL: url, Err: err}
}

func storeError(productID uint, err error, fallback domain.ErrorKind) error {
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		return storeErr
	}
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.StoreError{Kind: domain.KindNotFound, ProductID: productID, Err: err}
	}
	return &domain.StoreError{Kind: fallback, ProductID: productID, Err: err}
}
