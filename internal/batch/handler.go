package batch

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/platform/httpx"
)

// Handler wires the read-only stock endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	checker  *Checker
	settings InventorySource
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, repo *Repository, checker *Checker, settingsPort InventorySource) *Handler {
	return &Handler{
		logger:   logger,
		repo:     repo,
		checker:  checker,
		settings: settingsPort,
		validate: validator.New(),
	}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock/balance", h.handleBalance)
	r.Get("/stock/batches", h.handleBatches)
	r.Post("/stock/check", h.handleCheck)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	productID, locationID, ok := queryIDs(w, r)
	if !ok {
		return
	}
	inv, err := h.settings.Inventory(r.Context())
	if err != nil {
		h.logger.Error("load inventory settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.repo.StockBalance(r.Context(), productID, locationID, inv.ConsiderExpiryDate)
	if err != nil {
		h.logger.Error("stock balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":    productID,
		"location_id":   locationID,
		"stock_balance": balance,
	})
}

func (h *Handler) handleBatches(w http.ResponseWriter, r *http.Request) {
	productID, locationID, ok := queryIDs(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	batches, err := h.repo.ListBatches(r.Context(), productID, locationID, limit)
	if err != nil {
		h.logger.Error("list batches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batches)
}

type checkLineRequest struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
}

type checkRequest struct {
	LocationID int64              `json:"location_id" validate:"required"`
	Lines      []checkLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	requests := make([]Request, 0, len(req.Lines))
	for _, line := range req.Lines {
		requests = append(requests, Request{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	res, err := h.checker.Check(r.Context(), req.LocationID, requests)
	if err != nil {
		h.logger.Error("availability check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func queryIDs(w http.ResponseWriter, r *http.Request) (productID, locationID int64, ok bool) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product_id")
		return 0, 0, false
	}
	locationID, err = strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid location_id")
		return 0, 0, false
	}
	return productID, locationID, true
}
