package httpapi

import (
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/NasaVasa/itemwatcher/internal/money"
	"github.com/NasaVasa/itemwatcher/internal/usecase"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type addProductRequest struct {
	URL    string `json:"url"`
	Target string `json:"target"`
}

type setTargetRequest struct {
	Target string `json:"target"`
}

// Prices are decimal strings in major units, e.g. "24999.00".
type productResponse struct {
	ID              uint       `json:"id"`
	URL             string     `json:"url"`
	Retailer        string     `json:"retailer"`
	Title           string     `json:"title"`
	Currency        string     `json:"currency"`
	TargetPrice     *string    `json:"target_price"`
	TargetAlertSent bool       `json:"target_alert_sent"`
	LastPrice       *string    `json:"last_price"`
	LastInStock     *bool      `json:"last_in_stock"`
	LastCheckedAt   *time.Time `json:"last_checked_at"`
	LowestPrice     *string    `json:"lowest_price,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type observationResponse struct {
	ID              uint      `json:"id"`
	ObservedAt      time.Time `json:"observed_at"`
	Price           *string   `json:"price"`
	OriginalPrice   *string   `json:"original_price,omitempty"`
	DiscountPercent *float64  `json:"discount_percent,omitempty"`
	Currency        string    `json:"currency"`
	InStock         bool      `json:"in_stock"`
	Title           string    `json:"title,omitempty"`
	Seller          string    `json:"seller,omitempty"`
}

type deliveryResponse struct {
	Channel   string `json:"channel"`
	Kind      string `json:"kind"`
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}

type checkResponse struct {
	ProductID   uint                 `json:"product_id"`
	OK          bool                 `json:"ok"`
	ErrorKind   string               `json:"error_kind,omitempty"`
	Error       string               `json:"error,omitempty"`
	Transitions []string             `json:"transitions"`
	Observation *observationResponse `json:"observation,omitempty"`
	Deliveries  []deliveryResponse   `json:"deliveries"`
	StartedAt   time.Time            `json:"started_at"`
	DurationMS  int64                `json:"duration_ms"`
}

type batchResponse struct {
	RunID   string          `json:"run_id"`
	Checked int             `json:"checked"`
	Failed  int             `json:"failed"`
	Skipped int             `json:"skipped"`
	Alerts  int             `json:"alerts"`
	Results []checkResponse `json:"results"`
}

type historyResponse struct {
	Product      productResponse       `json:"product"`
	LowestPrice  *string               `json:"lowest_price"`
	Observations []observationResponse `json:"observations"`
}

type addProductResponse struct {
	Product    productResponse `json:"product"`
	FirstCheck checkResponse   `json:"first_check"`
}

func priceString(minor *int64, currency string) *string {
	if minor == nil {
		return nil
	}
	s := money.FormatMinor(*minor, currency)
	return &s
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:              p.ID,
		URL:             p.URL,
		Retailer:        p.Retailer,
		Title:           p.Title,
		Currency:        p.Currency,
		TargetPrice:     priceString(p.TargetPrice, p.Currency),
		TargetAlertSent: p.TargetAlertSent,
		LastPrice:       priceString(p.LastPrice, p.Currency),
		LastInStock:     p.LastInStock,
		LastCheckedAt:   p.LastCheckedAt,
		CreatedAt:       p.CreatedAt,
	}
}

func toSummaryResponse(s usecase.ProductSummary) productResponse {
	resp := toProductResponse(s.Product)
	resp.LowestPrice = priceString(s.LowestPrice, s.Product.Currency)
	return resp
}

func toObservationResponse(o domain.Observation) observationResponse {
	return observationResponse{
		ID:              o.ID,
		ObservedAt:      o.ObservedAt,
		Price:           priceString(o.Price, o.Currency),
		OriginalPrice:   priceString(o.OriginalPrice, o.Currency),
		DiscountPercent: o.DiscountPercent(),
		Currency:        o.Currency,
		InStock:         o.InStock,
		Title:           o.Title,
		Seller:          o.Seller,
	}
}

func toCheckResponse(r domain.CheckResult) checkResponse {
	resp := checkResponse{
		ProductID:   r.ProductID,
		OK:          r.OK(),
		Transitions: make([]string, 0, len(r.Transitions)),
		Deliveries:  make([]deliveryResponse, 0, len(r.Deliveries)),
		StartedAt:   r.StartedAt,
		DurationMS:  r.Duration.Milliseconds(),
	}
	if !r.OK() {
		resp.ErrorKind = string(r.FailureKind())
		resp.Error = r.FailureKind().Describe()
	}
	for _, t := range r.Transitions {
		resp.Transitions = append(resp.Transitions, string(t))
	}
	if r.Observation != nil {
		obs := toObservationResponse(*r.Observation)
		resp.Observation = &obs
	}
	for _, d := range r.Deliveries {
		resp.Deliveries = append(resp.Deliveries, deliveryResponse{
			Channel:   d.Channel,
			Kind:      string(d.Kind),
			Delivered: d.Delivered,
			Reason:    d.Reason,
		})
	}
	return resp
}

func toBatchResponse(b domain.BatchResult) batchResponse {
	checked, failed, skipped, alerts := b.Summary()
	resp := batchResponse{
		RunID:   b.RunID,
		Checked: checked,
		Failed:  failed,
		Skipped: skipped,
		Alerts:  alerts,
		Results: make([]checkResponse, 0, len(b.Results)),
	}
	for _, r := range b.Results {
		resp.Results = append(resp.Results, toCheckResponse(r))
	}
	return resp
}
