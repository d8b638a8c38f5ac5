package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Save inserts a new product. A product already stored under the same URL is
// reactivated with the new target instead, keeping its history.
func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing productModel
		err := tx.Where("url = ?", product.URL).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			model := mapProductToModel(*product)
			model.Active = true
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
			*product = mapProductToDomain(model)
			return nil
		case err != nil:
			return err
		}

		if err := tx.Model(&existing).Updates(map[string]interface{}{
			"active":            true,
			"target_price":      product.TargetPrice,
			"target_alert_sent": false,
		}).Error; err != nil {
			return err
		}
		if err := tx.First(&existing, existing.ID).Error; err != nil {
			return err
		}
		*product = mapProductToDomain(existing)
		return nil
	})
}

func (r *ProductRepository) SoftDelete(ctx context.Context, productID uint) error {
	result := r.db.WithContext(ctx).Model(&productModel{}).Where("id = ?", productID).Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetTarget replaces the target price and re-arms the target alert.
func (r *ProductRepository) SetTarget(ctx context.Context, productID uint, target *int64) error {
	result := r.db.WithContext(ctx).Model(&productModel{}).Where("id = ?", productID).Updates(map[string]interface{}{
		"target_price":      target,
		"target_alert_sent": false,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LowestPrice returns the lowest price ever observed, or nil when no
// observation carried a price.
func (r *ProductRepository) LowestPrice(ctx context.Context, productID uint) (*int64, error) {
	var lowest sql.NullInt64
	row := r.db.WithContext(ctx).
		Model(&observationModel{}).
		Select("MIN(price)").
		Where("product_id = ? AND price IS NOT NULL", productID).
		Row()
	if err := row.Scan(&lowest); err != nil {
		return nil, err
	}
	if !lowest.Valid {
		return nil, nil
	}
	return &lowest.Int64, nil
}

func mapProductToDomain(model productModel) domain.Product {
	return domain.Product{
		ID:              model.ID,
		URL:             model.URL,
		Retailer:        model.Retailer,
		Title:           model.Title,
		Currency:        model.Currency,
		TargetPrice:     model.TargetPrice,
		TargetAlertSent: model.TargetAlertSent,
		Active:          model.Active,
		LastPrice:       model.LastPrice,
		LastInStock:     model.LastInStock,
		LastCheckedAt:   model.LastCheckedAt,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func mapProductToModel(product domain.Product) productModel {
	return productModel{
		ID:              product.ID,
		URL:             product.URL,
		Retailer:        product.Retailer,
		Title:           product.Title,
		Currency:        product.Currency,
		TargetPrice:     product.TargetPrice,
		TargetAlertSent: product.TargetAlertSent,
		Active:          product.Active,
		LastPrice:       product.LastPrice,
		LastInStock:     product.LastInStock,
		LastCheckedAt:   product.LastCheckedAt,
		CreatedAt:       product.CreatedAt,
		UpdatedAt:       product.UpdatedAt,
	}
}
