package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/NasaVasa/itemwatcher/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minor(v int64) *int64 { return &v }

func TestPrintList(t *testing.T) {
	var buf bytes.Buffer
	inStock := false
	summaries := []usecase.ProductSummary{{
		Product:     domain.Product{ID: 2, Title: "Redmi 13C (Starfrost Black, 128 GB, 8 GB RAM, Dual SIM)", Currency: "INR", LastPrice: minor(799900), LastInStock: &inStock},
		LowestPrice: minor(749900),
	}}

	require.NoError(t, printList(&buf, summaries))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Redmi 13C (Starfrost Black, 128 GB, 8...")
	assert.Contains(t, lines[1], "₹7,999.00")
	assert.Contains(t, lines[1], "out of stock")
	assert.Contains(t, lines[1], "₹7,499.00")
	assert.Contains(t, lines[1], "never")
}

func TestPrintListEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printList(&buf, nil))
	assert.Equal(t, "No products tracked.\n", buf.String())
}

func TestPrintBatch(t *testing.T) {
	var buf bytes.Buffer
	batch := domain.BatchResult{RunID: "run-1", Results: []domain.CheckResult{
		{
			ProductID:   1,
			Observation: &domain.Observation{Price: minor(899900), Currency: "INR", InStock: true},
			Transitions: domain.TransitionSet{domain.TransitionPriceDrop, domain.TransitionTargetReached},
			Deliveries: []domain.DeliveryOutcome{
				{Channel: "email", Kind: domain.TransitionPriceDrop, Delivered: true},
				{Channel: "email", Kind: domain.TransitionTargetReached, Reason: "535 auth failed"},
			},
		},
		{ProductID: 2, Err: &domain.ScrapeError{Kind: domain.KindBlocked}},
	}}

	printBatch(&buf, batch)

	out := buf.String()
	assert.Contains(t, out, "#1 ₹8,999.00 in stock: PRICE_DROP,TARGET_REACHED\n")
	assert.Contains(t, out, "alert PRICE_DROP via email sent\n")
	assert.Contains(t, out, "alert TARGET_REACHED via email not sent: 535 auth failed\n")
	assert.Contains(t, out, "#2 failed (blocked): the store blocked the request\n")
	assert.Contains(t, out, "Run run-1: checked 1, failed 1, skipped 0, alerts 2\n")
}

func TestPrintObservationAndTarget(t *testing.T) {
	var buf bytes.Buffer
	printObservation(&buf, "flipkart", domain.Observation{Title: "Noise Buds", Price: minor(129900), OriginalPrice: minor(399900), Currency: "INR", InStock: true})
	assert.Contains(t, buf.String(), "Discount: 67.5%")
	assert.NotContains(t, buf.String(), "Seller")

	buf.Reset()
	printTarget(&buf, domain.Product{ID: 4})
	assert.Equal(t, "Target cleared for #4\n", buf.String())
}

func TestToProductID(t *testing.T) {
	_, err := toProductID(0)
	assert.Error(t, err)
	id, err := toProductID(12)
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)
}
