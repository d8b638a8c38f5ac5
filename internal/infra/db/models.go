package db

import "time"

type productModel struct {
	ID              uint   `gorm:"primaryKey"`
	URL             string `gorm:"uniqueIndex;not null"`
	Retailer        string `gorm:"not null"`
	Title           string `gorm:""`
	Currency        string `gorm:"size:3;not null"`
	TargetPrice     *int64
	TargetAlertSent bool `gorm:"not null"`
	Active          bool `gorm:"index;not null"`
	LastPrice       *int64
	LastInStock     *bool
	LastCheckedAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (productModel) TableName() string { return "products" }

type observationModel struct {
	ID            uint      `gorm:"primaryKey"`
	ProductID     uint      `gorm:"index:idx_observations_product_observed,priority:1;not null"`
	ObservedAt    time.Time `gorm:"index:idx_observations_product_observed,priority:2;not null"`
	Price         *int64
	OriginalPrice *int64
	Currency      string `gorm:"size:3;not null"`
	InStock       bool   `gorm:"not null"`
	Title         string `gorm:""`
	Seller        string `gorm:""`
}

func (observationModel) TableName() string { return "observations" }
