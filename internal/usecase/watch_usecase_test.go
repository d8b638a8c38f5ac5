package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFirstSeen(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	dispatcher := &stubDispatcher{}
	u := newTestWatch(t, store, priceSequence(raw("₹1,299", true)), dispatcher, WatchConfig{})

	result := u.Check(context.Background(), id)

	require.NoError(t, result.Err)
	require.NotNil(t, result.Observation)
	assert.Equal(t, domain.TransitionSet{domain.TransitionFirstSeen}, result.Transitions)
	assert.Equal(t, int64(129900), *result.Observation.Price)
	assert.Equal(t, []domain.TransitionKind{domain.TransitionFirstSeen}, dispatcher.kinds())

	product := store.product(id)
	require.NotNil(t, product.LastCheckedAt)
	assert.Equal(t, int64(129900), *product.LastPrice)
	assert.True(t, *product.LastInStock)
	assert.Equal(t, "Widget", product.Title)
}

func TestCheckPriceDropReachesTarget(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1"), TargetPrice: minor(4500000)})
	dispatcher := &stubDispatcher{}
	u := newTestWatch(t, store, priceSequence(raw("₹50,000", true), raw("₹44,999", true)), dispatcher, WatchConfig{})

	first := u.Check(context.Background(), id)
	require.NoError(t, first.Err)
	assert.Equal(t, domain.TransitionSet{domain.TransitionFirstSeen}, first.Transitions)

	second := u.Check(context.Background(), id)
	require.NoError(t, second.Err)
	assert.Equal(t, domain.TransitionSet{domain.TransitionPriceDrop, domain.TransitionTargetReached}, second.Transitions)
	require.Len(t, second.Deliveries, 2)
	assert.True(t, second.Deliveries[0].Delivered)

	product := store.product(id)
	assert.True(t, product.TargetAlertSent)
	assert.Equal(t, int64(4499900), *product.LastPrice)

	dispatcher.mu.Lock()
	drop := dispatcher.events[1]
	dispatcher.mu.Unlock()
	assert.Equal(t, domain.TransitionPriceDrop, drop.Kind)
	assert.Equal(t, int64(5000000), *drop.OldPrice)
	assert.Equal(t, int64(4499900), *drop.NewPrice)
	assert.Equal(t, testURL("p/1"), drop.URL)
}

func TestCheckOutOfStockOnly(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	dispatcher := &stubDispatcher{}
	u := newTestWatch(t, store, priceSequence(raw("₹1,000", true), raw("₹1,000", false)), dispatcher, WatchConfig{})

	u.Check(context.Background(), id)
	result := u.Check(context.Background(), id)

	require.NoError(t, result.Err)
	assert.Equal(t, domain.TransitionSet{domain.TransitionOutOfStock}, result.Transitions)
	assert.False(t, *store.product(id).LastInStock)
}

func TestCheckMissingPriceIsOutOfStock(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	u := newTestWatch(t, store, priceSequence(
		raw("₹1,000", true),
		domain.RawObservation{Title: "Widget", StockText: "Currently unavailable."},
	), &stubDispatcher{}, WatchConfig{})

	u.Check(context.Background(), id)
	result := u.Check(context.Background(), id)

	require.NoError(t, result.Err)
	assert.Equal(t, domain.TransitionSet{domain.TransitionOutOfStock}, result.Transitions)
	product := store.product(id)
	assert.Nil(t, product.LastPrice)
	assert.False(t, *product.LastInStock)
}

func TestCheckUnchanged(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	dispatcher := &stubDispatcher{}
	u := newTestWatch(t, store, priceSequence(raw("₹1,000", true)), dispatcher, WatchConfig{})

	u.Check(context.Background(), id)
	result := u.Check(context.Background(), id)

	require.NoError(t, result.Err)
	assert.Equal(t, domain.TransitionSet{domain.TransitionUnchanged}, result.Transitions)
	assert.Empty(t, result.Deliveries)
	assert.Len(t, store.observations(id), 2)
	assert.Len(t, dispatcher.kinds(), 1)
}

func TestCheckTimeoutLeavesStoreUntouched(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	adapter := &stubAdapter{fn: func(context.Context, string) (domain.RawObservation, error) {
		<-block
		return raw("₹1,000", true), nil
	}}
	u := newTestWatch(t, store, adapter, &stubDispatcher{}, WatchConfig{ScrapeTimeout: 30 * time.Millisecond})

	result := u.Check(context.Background(), id)

	assert.Equal(t, domain.KindTimeout, result.FailureKind())
	assert.Nil(t, result.Observation)
	assert.Nil(t, store.product(id).LastCheckedAt)
	assert.Empty(t, store.observations(id))
	assert.Equal(t, 0, store.appendCalled)

	_, ok := u.locks.tryAcquire(id)
	assert.True(t, ok, "lock must be released after a timeout")
}

func TestCheckIgnoresCallerCancellationOnceStarted(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})

	ctx, cancel := context.WithCancel(context.Background())
	adapter := &stubAdapter{fn: func(adapterCtx context.Context, _ string) (domain.RawObservation, error) {
		cancel()
		if adapterCtx.Err() != nil {
			return domain.RawObservation{}, adapterCtx.Err()
		}
		return raw("₹1,000", true), nil
	}}
	u := newTestWatch(t, store, adapter, &stubDispatcher{}, WatchConfig{})

	result := u.Check(ctx, id)

	require.NoError(t, result.Err)
	assert.Len(t, store.observations(id), 1)
}

func TestConcurrentChecksScrapeOnce(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	adapter := &stubAdapter{fn: func(context.Context, string) (domain.RawObservation, error) {
		once.Do(func() { close(entered) })
		<-release
		return raw("₹1,000", true), nil
	}}
	u := newTestWatch(t, store, adapter, &stubDispatcher{}, WatchConfig{})

	firstDone := make(chan domain.CheckResult, 1)
	go func() { firstDone <- u.Check(context.Background(), id) }()
	<-entered

	second := u.Check(context.Background(), id)
	assert.Equal(t, domain.KindAlreadyChecking, second.FailureKind())

	close(release)
	first := <-firstDone
	require.NoError(t, first.Err)

	assert.Equal(t, int32(1), adapter.calls.Load())
	assert.Len(t, store.observations(id), 1)
}

func TestSetTargetDuringCheckIsRejected(t *testing.T) {
	store := newStubStore()
	checked := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	id := store.add(domain.Product{
		URL:             testURL("p/1"),
		TargetPrice:     minor(45000),
		TargetAlertSent: true,
		LastPrice:       minor(44000),
		LastInStock:     boolp(true),
		LastCheckedAt:   &checked,
	})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	adapter := &stubAdapter{fn: func(context.Context, string) (domain.RawObservation, error) {
		once.Do(func() {
			close(entered)
			<-release
		})
		return raw("₹420.00", true), nil
	}}
	dispatcher := &stubDispatcher{}
	u := newTestWatch(t, store, adapter, dispatcher, WatchConfig{})
	products := NewProductUsecase(store, store, u.adapters, u)

	firstDone := make(chan domain.CheckResult, 1)
	go func() { firstDone <- u.Check(context.Background(), id) }()
	<-entered

	_, err := products.SetTarget(context.Background(), id, "430")
	assert.ErrorIs(t, err, ErrCheckInProgress)
	assert.Equal(t, int64(45000), *store.product(id).TargetPrice)

	close(release)
	first := <-firstDone
	require.NoError(t, first.Err)
	assert.Equal(t, domain.TransitionSet{domain.TransitionPriceDrop}, first.Transitions)
	assert.True(t, store.product(id).TargetAlertSent)

	product, err := products.SetTarget(context.Background(), id, "430")
	require.NoError(t, err)
	assert.Equal(t, int64(43000), *product.TargetPrice)
	assert.False(t, store.product(id).TargetAlertSent)

	second := u.Check(context.Background(), id)
	require.NoError(t, second.Err)
	assert.Equal(t, domain.TransitionSet{domain.TransitionTargetReached}, second.Transitions)
	assert.True(t, store.product(id).TargetAlertSent)
	assert.Equal(t, []domain.TransitionKind{domain.TransitionPriceDrop, domain.TransitionTargetReached}, dispatcher.kinds())
}

func TestTargetReachedOncePerCrossing(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1"), TargetPrice: minor(45000)})
	u := newTestWatch(t, store, priceSequence(
		raw("500", true),
		raw("440", true),
		raw("430", true),
		raw("440", true),
		raw("460", true),
		raw("440", true),
	), &stubDispatcher{}, WatchConfig{})

	var reached []int
	for i := 0; i < 6; i++ {
		result := u.Check(context.Background(), id)
		require.NoError(t, result.Err)
		if result.Transitions.Has(domain.TransitionTargetReached) {
			reached = append(reached, i)
		}
	}
	assert.Equal(t, []int{1, 5}, reached)
}

func TestTargetReachedOnFirstObservation(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1"), TargetPrice: minor(100000)})
	u := newTestWatch(t, store, priceSequence(raw("₹900", true)), &stubDispatcher{}, WatchConfig{})

	result := u.Check(context.Background(), id)

	require.NoError(t, result.Err)
	assert.Equal(t, domain.TransitionSet{domain.TransitionFirstSeen, domain.TransitionTargetReached}, result.Transitions)
}

func TestProductStateMatchesLatestObservation(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	u := newTestWatch(t, store, priceSequence(
		raw("₹1,000", true),
		raw("₹900", true),
		domain.RawObservation{Title: "Widget"},
		raw("₹950", true),
	), &stubDispatcher{}, WatchConfig{})

	for i := 0; i < 4; i++ {
		require.NoError(t, u.Check(context.Background(), id).Err)

		product := store.product(id)
		history, err := store.GetHistory(context.Background(), id, 1)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, history[0].Price, product.LastPrice)
		assert.Equal(t, history[0].InStock, *product.LastInStock)
		assert.Equal(t, history[0].ObservedAt, *product.LastCheckedAt)
	}
}

func TestCheckWriteFailureSendsNoAlerts(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	store.appendErr = errBoom
	dispatcher := &stubDispatcher{}
	u := newTestWatch(t, store, priceSequence(raw("₹1,000", true)), dispatcher, WatchConfig{})

	result := u.Check(context.Background(), id)

	assert.Equal(t, domain.KindWriteFailure, result.FailureKind())
	assert.ErrorIs(t, result.Err, errBoom)
	assert.Nil(t, result.Observation)
	assert.Empty(t, dispatcher.kinds())
	assert.Nil(t, store.product(id).LastCheckedAt)
}

func TestDispatchFailureKeepsCommittedObservation(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	u := newTestWatch(t, store, priceSequence(raw("₹1,000", true)), &stubDispatcher{fail: true}, WatchConfig{})

	result := u.Check(context.Background(), id)

	require.NoError(t, result.Err)
	require.Len(t, result.Deliveries, 1)
	assert.False(t, result.Deliveries[0].Delivered)
	assert.Equal(t, "smtp down", result.Deliveries[0].Reason)
	assert.Equal(t, domain.TransitionFirstSeen, result.Deliveries[0].Kind)
	assert.Len(t, store.observations(id), 1)
}

func TestDispatcherPanicIsRecovered(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	u := newTestWatch(t, store, priceSequence(raw("₹1,000", true)), &stubDispatcher{panics: true}, WatchConfig{})

	result := u.Check(context.Background(), id)

	require.NoError(t, result.Err)
	require.Len(t, result.Deliveries, 1)
	assert.False(t, result.Deliveries[0].Delivered)
	assert.Contains(t, result.Deliveries[0].Reason, "panic")
}

func TestAdapterPanicIsParseFailure(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	adapter := &stubAdapter{fn: func(context.Context, string) (domain.RawObservation, error) {
		panic("nil selection")
	}}
	u := newTestWatch(t, store, adapter, &stubDispatcher{}, WatchConfig{})

	result := u.Check(context.Background(), id)

	assert.Equal(t, domain.KindParseFailure, result.FailureKind())
	assert.Empty(t, store.observations(id))
}

func TestCheckFailureKinds(t *testing.T) {
	cases := []struct {
		name    string
		product domain.Product
		fn      scrapeFunc
		want    domain.ErrorKind
	}{
		{
			name:    "blocked",
			product: domain.Product{URL: testURL("p/1")},
			fn: func(_ context.Context, url string) (domain.RawObservation, error) {
				return domain.RawObservation{}, &domain.ScrapeError{Kind: domain.KindBlocked, URL: url}
			},
			want: domain.KindBlocked,
		},
		{
			name:    "plain error is a network failure",
			product: domain.Product{URL: testURL("p/1")},
			fn: func(context.Context, string) (domain.RawObservation, error) {
				return domain.RawObservation{}, fmt.Errorf("dial tcp: connection refused")
			},
			want: domain.KindNetworkFailure,
		},
		{
			name:    "unsupported site",
			product: domain.Product{URL: "https://elsewhere.test/p/1"},
			fn: func(context.Context, string) (domain.RawObservation, error) {
				return raw("₹1,000", true), nil
			},
			want: domain.KindUnsupportedSite,
		},
		{
			name:    "currency mismatch",
			product: domain.Product{URL: testURL("p/1")},
			fn: func(context.Context, string) (domain.RawObservation, error) {
				return domain.RawObservation{Title: "Widget", PriceText: "$12.00", CurrencyText: "$"}, nil
			},
			want: domain.KindCurrencyMismatch,
		},
		{
			name:    "invalid price",
			product: domain.Product{URL: testURL("p/1")},
			fn: func(context.Context, string) (domain.RawObservation, error) {
				return domain.RawObservation{Title: "Widget", PriceText: "call for price"}, nil
			},
			want: domain.KindInvalidPrice,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStubStore()
			id := store.add(tc.product)
			dispatcher := &stubDispatcher{}
			u := newTestWatch(t, store, &stubAdapter{fn: tc.fn}, dispatcher, WatchConfig{})

			result := u.Check(context.Background(), id)

			assert.Equal(t, tc.want, result.FailureKind())
			assert.Nil(t, result.Observation)
			assert.Empty(t, store.observations(id))
			assert.Empty(t, dispatcher.kinds())
		})
	}
}

func TestCheckUnknownOrInactiveProduct(t *testing.T) {
	store := newStubStore()
	id := store.add(domain.Product{URL: testURL("p/1")})
	require.NoError(t, store.SoftDelete(context.Background(), id))
	adapter := priceSequence(raw("₹1,000", true))
	u := newTestWatch(t, store, adapter, &stubDispatcher{}, WatchConfig{})

	assert.Equal(t, domain.KindNotFound, u.Check(context.Background(), id).FailureKind())
	assert.Equal(t, domain.KindNotFound, u.Check(context.Background(), 999).FailureKind())
	assert.Equal(t, int32(0), adapter.calls.Load())
}

func TestCheckAllIsolatesFailures(t *testing.T) {
	store := newStubStore()
	ids := []uint{
		store.add(domain.Product{URL: testURL("ok-1")}),
		store.add(domain.Product{URL: testURL("bad")}),
		store.add(domain.Product{URL: testURL("ok-2")}),
	}
	adapter := &stubAdapter{fn: func(_ context.Context, url string) (domain.RawObservation, error) {
		if strings.HasSuffix(url, "/bad") {
			return domain.RawObservation{}, &domain.ScrapeError{Kind: domain.KindBlocked, URL: url}
		}
		return raw("₹1,000", true), nil
	}}
	u := newTestWatch(t, store, adapter, &stubDispatcher{}, WatchConfig{})

	batch := u.CheckAll(context.Background())

	require.NoError(t, batch.ListErr)
	assert.NotEmpty(t, batch.RunID)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, ids[0], batch.Results[0].ProductID)
	assert.True(t, batch.Results[0].OK())
	assert.Equal(t, domain.KindBlocked, batch.Results[1].FailureKind())
	assert.True(t, batch.Results[2].OK())

	checked, failed, skipped, alerts := batch.Summary()
	assert.Equal(t, 2, checked)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 2, alerts)

	assert.Len(t, store.observations(ids[0]), 1)
	assert.Empty(t, store.observations(ids[1]))
	assert.Len(t, store.observations(ids[2]), 1)
}

func TestCheckAllBoundsConcurrency(t *testing.T) {
	store := newStubStore()
	for i := 0; i < 8; i++ {
		store.add(domain.Product{URL: testURL(fmt.Sprintf("p/%d", i))})
	}
	adapter := &stubAdapter{fn: func(context.Context, string) (domain.RawObservation, error) {
		time.Sleep(20 * time.Millisecond)
		return raw("₹1,000", true), nil
	}}
	u := newTestWatch(t, store, adapter, &stubDispatcher{}, WatchConfig{MaxConcurrentChecks: 2})

	batch := u.CheckAll(context.Background())

	require.Len(t, batch.Results, 8)
	assert.Equal(t, int32(8), adapter.calls.Load())
	assert.LessOrEqual(t, adapter.maxSeen.Load(), int32(2))
}

func TestCheckAllCancelledBeforeStart(t *testing.T) {
	store := newStubStore()
	store.add(domain.Product{URL: testURL("p/1")})
	store.add(domain.Product{URL: testURL("p/2")})
	adapter := priceSequence(raw("₹1,000", true))
	u := newTestWatch(t, store, adapter, &stubDispatcher{}, WatchConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch := u.CheckAll(ctx)

	require.Len(t, batch.Results, 2)
	for _, r := range batch.Results {
		assert.Equal(t, domain.KindCancelled, r.FailureKind())
	}
	_, _, skipped, _ := batch.Summary()
	assert.Equal(t, 2, skipped)
	assert.Equal(t, int32(0), adapter.calls.Load())
}

func TestCheckAllListFailure(t *testing.T) {
	store := newStubStore()
	store.listErr = errBoom
	u := newTestWatch(t, store, priceSequence(raw("₹1,000", true)), &stubDispatcher{}, WatchConfig{})

	batch := u.CheckAll(context.Background())

	assert.Equal(t, domain.KindReadFailure, domain.KindOf(batch.ListErr))
	assert.Empty(t, batch.Results)
}

func TestPreviewDoesNotWrite(t *testing.T) {
	store := newStubStore()
	u := newTestWatch(t, store, priceSequence(raw("₹1,000", true)), &stubDispatcher{}, WatchConfig{})

	obs, adapter, err := u.Preview(context.Background(), testURL("p/9"))

	require.NoError(t, err)
	assert.Equal(t, "stub", adapter.Retailer())
	assert.Equal(t, int64(100000), *obs.Price)
	assert.Equal(t, 0, store.appendCalled)
}
