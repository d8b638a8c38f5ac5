package domain

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// HistoryStore is the storage contract the watch engine depends on.
// AppendObservationAndUpdateProduct must commit the observation row and the
// product's last_* fields in one transaction; it fills obs.ID on success.
type HistoryStore interface {
	GetProduct(ctx context.Context, productID uint) (*Product, error)
	AppendObservationAndUpdateProduct(ctx context.Context, productID uint, obs *Observation, targetAlertSent bool) error
	ListActive(ctx context.Context) ([]Product, error)
	GetHistory(ctx context.Context, productID uint, limit int) ([]Observation, error)
}

type ProductRepository interface {
	// Save creates the product, or reactivates and retargets an existing
	// product with the same URL.
	Save(ctx context.Context, product *Product) error
	SoftDelete(ctx context.Context, productID uint) error
	SetTarget(ctx context.Context, productID uint, target *int64) error
	LowestPrice(ctx context.Context, productID uint) (*int64, error)
}
