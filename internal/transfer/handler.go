package transfer

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

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

// Handler wires HTTP endpoints for stock transfers.
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

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transfers", h.handleSend)
	r.Get("/transfers/{id}", h.handleGet)
	r.Post("/transfers/{id}/lines/{lineID}/receive", h.handleReceive)
	r.Post("/transfers/{id}/lines/{lineID}/return", h.handleReturn)
}

type sendLineRequest struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
}

type sendRequest struct {
	SenderLocationID   int64             `json:"sender_location_id" validate:"required"`
	ReceiverLocationID int64             `json:"receiver_location_id" validate:"required"`
	Lines              []sendLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type moveRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := SendInput{
		SenderLocationID:   req.SenderLocationID,
		ReceiverLocationID: req.ReceiverLocationID,
		ActorID:            shared.ActorFromContext(r.Context()),
		IdempotencyKey:     r.Header.Get("Idempotency-Key"),
	}
	requests := make([]batch.Request, 0, len(req.Lines))
	productIDs := make([]int64, 0, len(req.Lines))
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
		requests = append(requests, batch.Request{ProductID: line.ProductID, Quantity: line.Quantity})
		productIDs = append(productIDs, line.ProductID)
	}

	res, err := h.checker.Check(r.Context(), input.SenderLocationID, requests)
	if err != nil {
		h.logger.Error("availability check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !res.OK {
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", res.Reason)
		return
	}

	t, err := h.service.Send(r.Context(), input)
	if err != nil {
		h.logger.Error("send transfer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if h.notifier != nil {
		if err := h.notifier.NotifyIfLow(r.Context(), input.SenderLocationID, productIDs); err != nil {
			h.logger.Warn("low stock notify", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	h.handleMove(w, r, h.service.Receive)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleMove(w, r, h.service.Return)
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request,
	move func(context.Context, MoveInput) (Line, error)) {

	transferID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return
	}
	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line id")
		return
	}

	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	line, err := move(r.Context(), MoveInput{
		TransferID: transferID,
		LineID:     lineID,
		Quantity:   req.Quantity,
		ActorID:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("move transfer line", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}
