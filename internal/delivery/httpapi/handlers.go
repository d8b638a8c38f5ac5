package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/NasaVasa/itemwatcher/internal/usecase"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type ProductService interface {
	AddProduct(ctx context.Context, rawURL, targetText string) (*domain.Product, domain.CheckResult, error)
	ListProducts(ctx context.Context) ([]usecase.ProductSummary, error)
	RemoveProduct(ctx context.Context, productID uint) (*domain.Product, error)
	SetTarget(ctx context.Context, productID uint, targetText string) (*domain.Product, error)
	History(ctx context.Context, productID uint, limit int) (*domain.Product, []domain.Observation, *int64, error)
}

type CheckService interface {
	Check(ctx context.Context, productID uint) domain.CheckResult
	CheckAll(ctx context.Context) domain.BatchResult
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handlers struct {
	products ProductService
	checks   CheckService
	db       Pinger
	logger   *zap.Logger
}

func NewHandlers(products ProductService, checks CheckService, db Pinger, logger *zap.Logger) *Handlers {
	return &Handlers{products: products, checks: checks, db: db, logger: logger}
}

func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("health check: database ping failed", zap.Error(err))
		dbStatus = "error"
	}

	status := http.StatusOK
	if dbStatus != "connected" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ok": status == http.StatusOK, "db": dbStatus})
}

func (h *Handlers) ListProducts(c *gin.Context) {
	summaries, err := h.products.ListProducts(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	data := make([]productResponse, 0, len(summaries))
	for _, s := range summaries {
		data = append(data, toSummaryResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *Handlers) AddProduct(c *gin.Context) {
	var req addProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_json", Details: err.Error()})
		return
	}
	product, result, err := h.products.AddProduct(c.Request.Context(), req.URL, req.Target)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addProductResponse{
		Product:    toProductResponse(*product),
		FirstCheck: toCheckResponse(result),
	})
}

func (h *Handlers) RemoveProduct(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}
	product, err := h.products.RemoveProduct(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*product))
}

func (h *Handlers) SetTarget(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}
	var req setTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_json", Details: err.Error()})
		return
	}
	product, err := h.products.SetTarget(c.Request.Context(), productID, req.Target)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*product))
}

func (h *Handlers) History(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_limit"})
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	product, history, lowest, err := h.products.History(c.Request.Context(), productID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := historyResponse{
		Product:      toProductResponse(*product),
		LowestPrice:  priceString(lowest, product.Currency),
		Observations: make([]observationResponse, 0, len(history)),
	}
	for _, obs := range history {
		resp.Observations = append(resp.Observations, toObservationResponse(obs))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) CheckProduct(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}
	result := h.checks.Check(c.Request.Context(), productID)
	c.JSON(checkStatus(result), toCheckResponse(result))
}

func (h *Handlers) CheckAll(c *gin.Context) {
	batch := h.checks.CheckAll(c.Request.Context())
	if batch.ListErr != nil {
		h.logger.Error("check all: list failed", zap.Error(batch.ListErr))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: string(domain.KindOf(batch.ListErr)), Details: domain.KindOf(batch.ListErr).Describe()})
		return
	}
	c.JSON(http.StatusOK, toBatchResponse(batch))
}

func checkStatus(result domain.CheckResult) int {
	switch result.FailureKind() {
	case "":
		return http.StatusOK
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyChecking:
		return http.StatusConflict
	case domain.KindReadFailure, domain.KindWriteFailure, domain.KindUnknown:
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

func productIDParam(c *gin.Context) (uint, bool) {
	value, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || value == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_product_id"})
		return 0, false
	}
	return uint(value), true
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_url"})
	case errors.Is(err, usecase.ErrUnsupportedSite):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "unsupported_site"})
	case errors.Is(err, usecase.ErrInvalidTarget):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_target"})
	case errors.Is(err, usecase.ErrProductNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "product_not_found"})
	case errors.Is(err, usecase.ErrCheckInProgress):
		c.JSON(http.StatusConflict, errorResponse{Error: "check_in_progress"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}
