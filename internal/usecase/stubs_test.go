package usecase

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"go.uber.org/zap"
)

type stubStore struct {
	mu           sync.Mutex
	products     map[uint]*domain.Product
	history      map[uint][]domain.Observation
	nextID       uint
	nextObsID    uint
	appendErr    error
	listErr      error
	appendCalled int
}

func newStubStore() *stubStore {
	return &stubStore{products: make(map[uint]*domain.Product), history: make(map[uint][]domain.Observation)}
}

func (s *stubStore) add(p domain.Product) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	p.Active = true
	if p.Currency == "" {
		p.Currency = "INR"
	}
	s.products[p.ID] = &p
	return p.ID
}

func (s *stubStore) product(id uint) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.products[id]
}

func (s *stubStore) observations(id uint) []domain.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Observation(nil), s.history[id]...)
}

func (s *stubStore) GetProduct(_ context.Context, id uint) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubStore) AppendObservationAndUpdateProduct(_ context.Context, id uint, obs *domain.Observation, targetAlertSent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalled++
	if s.appendErr != nil {
		return s.appendErr
	}
	p, ok := s.products[id]
	if !ok || !p.Active {
		return &domain.StoreError{Kind: domain.KindNotFound, ProductID: id}
	}
	s.nextObsID++
	obs.ID = s.nextObsID
	obs.ProductID = id
	s.history[id] = append(s.history[id], *obs)

	inStock := obs.InStock
	checkedAt := obs.ObservedAt
	p.LastPrice = obs.Price
	p.LastInStock = &inStock
	p.LastCheckedAt = &checkedAt
	p.TargetAlertSent = targetAlertSent
	if obs.Title != "" {
		p.Title = obs.Title
	}
	return nil
}

func (s *stubStore) ListActive(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Product
	for _, p := range s.products {
		if p.Active {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubStore) GetHistory(_ context.Context, id uint, limit int) ([]domain.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.history[id]
	out := make([]domain.Observation, 0, len(rows))
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

func (s *stubStore) Save(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if existing.URL == p.URL {
			existing.Active = true
			existing.TargetPrice = p.TargetPrice
			existing.TargetAlertSent = false
			*p = *existing
			return nil
		}
	}
	s.nextID++
	p.ID = s.nextID
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *stubStore) SoftDelete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = false
	return nil
}

func (s *stubStore) SetTarget(_ context.Context, id uint, target *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.TargetPrice = target
	p.TargetAlertSent = false
	return nil
}

func (s *stubStore) LowestPrice(_ context.Context, id uint) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lowest *int64
	for _, obs := range s.history[id] {
		if obs.Price != nil && (lowest == nil || *obs.Price < *lowest) {
			v := *obs.Price
			lowest = &v
		}
	}
	return lowest, nil
}

type scrapeFunc func(ctx context.Context, url string) (domain.RawObservation, error)

type stubAdapter struct {
	fn       scrapeFunc
	calls    atomic.Int32
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func (a *stubAdapter) Retailer() string { return "stub" }
func (a *stubAdapter) Currency() string { return "INR" }

func (a *stubAdapter) Scrape(ctx context.Context, url string) (domain.RawObservation, error) {
	a.calls.Add(1)
	n := a.inflight.Add(1)
	defer a.inflight.Add(-1)
	for {
		seen := a.maxSeen.Load()
		if n <= seen || a.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	return a.fn(ctx, url)
}

// priceSequence returns an adapter answering with the given raw observations in order.
func priceSequence(raws ...domain.RawObservation) *stubAdapter {
	var mu sync.Mutex
	i := 0
	return &stubAdapter{fn: func(context.Context, string) (domain.RawObservation, error) {
		mu.Lock()
		defer mu.Unlock()
		raw := raws[i]
		if i < len(raws)-1 {
			i++
		}
		return raw, nil
	}}
}

type stubResolver struct {
	adapters map[string]domain.SiteAdapter
}

func resolverFor(host string, adapter domain.SiteAdapter) *stubResolver {
	return &stubResolver{adapters: map[string]domain.SiteAdapter{host: adapter}}
}

func (r *stubResolver) Resolve(rawURL string) (domain.SiteAdapter, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	a, ok := r.adapters[u.Hostname()]
	return a, ok
}

type stubDispatcher struct {
	mu     sync.Mutex
	events []domain.AlertEvent
	fail   bool
	panics bool
}

func (d *stubDispatcher) Dispatch(_ context.Context, event domain.AlertEvent) domain.DeliveryOutcome {
	if d.panics {
		panic("boom")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	if d.fail {
		return domain.DeliveryOutcome{Channel: "stub", Reason: "smtp down"}
	}
	return domain.DeliveryOutcome{Channel: "stub", Delivered: true}
}

func (d *stubDispatcher) kinds() []domain.TransitionKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	var kinds []domain.TransitionKind
	for _, e := range d.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

const testHost = "shop.test"

func testURL(path string) string { return "https://" + testHost + "/" + path }

func raw(price string, inStock bool) domain.RawObservation {
	return domain.RawObservation{Title: "Widget", PriceText: price, InStock: &inStock}
}

func newTestWatch(t *testing.T, store *stubStore, adapter domain.SiteAdapter, dispatcher domain.AlertDispatcher, cfg WatchConfig) *WatchUsecase {
	t.Helper()
	u := NewWatchUsecase(store, resolverFor(testHost, adapter), dispatcher, cfg, zap.NewNop())
	var tick atomic.Int64
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }
	return u
}

func minor(v int64) *int64 { return &v }

func boolp(v bool) *bool { return &v }

var errBoom = errors.New("boom")
