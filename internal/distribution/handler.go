package distribution

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dealerdesk/dealerdesk/internal/platform/httpx"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// Handler manages distribution request endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers distribution routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/ship", h.ship)
	r.Post("/{id}/confirm-delivery", h.confirmDelivery)
}

type createRequest struct {
	CarConfigID int64 `json:"car_config_id" validate:"required,gt=0"`
	Quantity    int64 `json:"quantity" validate:"required,gt=0"`
}

type shipRequest struct {
	ExpectedDeliveryAt time.Time `json:"expected_delivery_at" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	requests, err := h.service.List(r.Context(), id)
	if err != nil {
		h.logger.Error("list distribution requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, requests)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	created, err := h.service.Create(r.Context(), id, CreateInput{
		CarConfigID: req.CarConfigID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.logger.Error("create distribution request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id *shared.Identity, requestID int64) (Request, error) {
		return h.service.Get(r.Context(), id, requestID)
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id *shared.Identity, requestID int64) (Request, error) {
		return h.service.Approve(r.Context(), id, requestID)
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id *shared.Identity, requestID int64) (Request, error) {
		return h.service.Reject(r.Context(), id, requestID)
	})
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	var req shipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	h.respond(w, r, func(id *shared.Identity, requestID int64) (Request, error) {
		return h.service.SetExpectedDelivery(r.Context(), id, requestID, req.ExpectedDeliveryAt)
	})
}

func (h *Handler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id *shared.Identity, requestID int64) (Request, error) {
		return h.service.ConfirmDelivery(r.Context(), id, requestID)
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, fn func(*shared.Identity, int64) (Request, error)) {
	id := shared.IdentityFromContext(r.Context())
	requestID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request id"))
		return
	}
	req, err := fn(id, requestID)
	if err != nil {
		h.logger.Error("distribution transition", slog.Int64("id", requestID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}
