package domain

import "time"

type Product struct {
	ID              uint
	URL             string
	Retailer        string
	Title           string
	Currency        string
	TargetPrice     *int64
	TargetAlertSent bool
	Active          bool
	LastPrice       *int64
	LastInStock     *bool
	LastCheckedAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p Product) Checked() bool {
	return p.LastCheckedAt != nil
}
