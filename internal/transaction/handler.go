package transaction

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/platform/httpx"
	"github.com/meridian-pos/meridian/internal/shared"
)

// LowStockNotifier fires low-stock checks after a committed stock-out.
type LowStockNotifier interface {
	NotifyIfLow(ctx context.Context, locationID int64, productIDs []int64) error
}

// Handler wires HTTP endpoints for purchases and sales.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	checker  *batch.Checker
	notifier LowStockNotifier
	validate *validator.Validate
}

// NewHandler constructs the handler. The notifier may be nil.
func NewHandler(logger *slog.Logger, service *Service, checker *batch.Checker, notifier LowStockNotifier) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		checker:  checker,
		notifier: notifier,
		validate: validator.New(),
	}
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchases", h.handlePurchase)
	r.Post("/sales", h.handleSale)
	r.Get("/transactions/{id}", h.handleGet)
}

type lineRequest struct {
	ProductID     int64           `json:"product_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	VATPercentage decimal.Decimal `json:"vat_percentage"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	ExpiryDate    *time.Time      `json:"expiry_date"`
}

type recordRequest struct {
	LocationID int64           `json:"location_id" validate:"required"`
	ContactID  int64           `json:"contact_id" validate:"required"`
	Note       string          `json:"note"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Lines      []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	trx, err := h.service.RecordPurchase(r.Context(), input)
	if err != nil {
		h.logger.Error("record purchase", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, trx)
}

func (h *Handler) handleSale(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	requests := make([]batch.Request, 0, len(input.Lines))
	productIDs := make([]int64, 0, len(input.Lines))
	for _, line := range input.Lines {
		requests = append(requests, batch.Request{ProductID: line.ProductID, Quantity: line.Quantity})
		productIDs = append(productIDs, line.ProductID)
	}
	res, err := h.checker.Check(r.Context(), input.LocationID, requests)
	if err != nil {
		h.logger.Error("availability check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !res.OK {
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", res.Reason)
		return
	}

	trx, err := h.service.RecordSale(r.Context(), input)
	if err != nil {
		h.logger.Error("record sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if h.notifier != nil {
		if err := h.notifier.NotifyIfLow(r.Context(), input.LocationID, productIDs); err != nil {
			h.logger.Warn("low stock notify", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusCreated, trx)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	trx, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, trx)
}

func (h *Handler) decodeRecord(w http.ResponseWriter, r *http.Request) (RecordInput, bool) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return RecordInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return RecordInput{}, false
	}

	input := RecordInput{
		LocationID:     req.LocationID,
		ContactID:      req.ContactID,
		Note:           req.Note,
		PaidAmount:     req.PaidAmount,
		ActorID:        shared.ActorFromContext(r.Context()),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			VATPercentage: line.VATPercentage,
			UnitCost:      line.UnitCost,
			ExpiryDate:    line.ExpiryDate,
		})
	}
	return input, true
}
