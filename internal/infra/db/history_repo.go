package db

import (
	"context"
	"errors"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"gorm.io/gorm"
)

// HistoryRepository stores observations and the product state derived from them.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) GetProduct(ctx context.Context, productID uint) (*domain.Product, error) {
	var model productModel
	if err := r.db.WithContext(ctx).First(&model, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	product := mapProductToDomain(model)
	return &product, nil
}

// AppendObservationAndUpdateProduct inserts the observation and copies it onto
// the product's last_* columns in one transaction. Inactive or missing
// products roll the whole write back with domain.ErrNotFound.
func (r *HistoryRepository) AppendObservationAndUpdateProduct(ctx context.Context, productID uint, obs *domain.Observation, targetAlertSent bool) error {
	obs.ProductID = productID
	model := mapObservationToModel(*obs)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"last_price":        obs.Price,
			"last_in_stock":     obs.InStock,
			"last_checked_at":   obs.ObservedAt,
			"target_alert_sent": targetAlertSent,
		}
		if obs.Title != "" {
			updates["title"] = obs.Title
		}
		result := tx.Model(&productModel{}).Where("id = ? AND active = ?", productID, true).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return err
	}
	obs.ID = model.ID
	return nil
}

func (r *HistoryRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	var models []productModel
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(models))
	for _, model := range models {
		products = append(products, mapProductToDomain(model))
	}
	return products, nil
}

func (r *HistoryRepository) GetHistory(ctx context.Context, productID uint, limit int) ([]domain.Observation, error) {
	var models []observationModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("observed_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	observations := make([]domain.Observation, 0, len(models))
	for _, model := range models {
		observations = append(observations, mapObservationToDomain(model))
	}
	return observations, nil
}

func mapObservationToDomain(model observationModel) domain.Observation {
	return domain.Observation{
		ID:            model.ID,
		ProductID:     model.ProductID,
		ObservedAt:    model.ObservedAt,
		Price:         model.Price,
		OriginalPrice: model.OriginalPrice,
		Currency:      model.Currency,
		InStock:       model.InStock,
		Title:         model.Title,
		Seller:        model.Seller,
	}
}

func mapObservationToModel(obs domain.Observation) observationModel {
	return observationModel{
		ID:            obs.ID,
		ProductID:     obs.ProductID,
		ObservedAt:    obs.ObservedAt,
		Price:         obs.Price,
		OriginalPrice: obs.OriginalPrice,
		Currency:      obs.Currency,
		InStock:       obs.InStock,
		Title:         obs.Title,
		Seller:        obs.Seller,
	}
}
