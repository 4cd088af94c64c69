package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk/internal/platform/httpx"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// Handler exposes the dealer's own ledger over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.snapshot)
	r.Get("/{carConfigID}", h.get)
	r.Put("/{carConfigID}/price", h.setPrice)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	entries, err := h.service.Snapshot(r.Context(), id.DealerID)
	if err != nil {
		h.logger.Error("inventory snapshot", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	carConfigID, err := strconv.ParseInt(chi.URLParam(r, "carConfigID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid car config id"))
		return
	}
	entry, err := h.service.Get(r.Context(), id.DealerID, carConfigID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type setPriceRequest struct {
	DealerPrice decimal.Decimal `json:"dealer_price"`
}

func (h *Handler) setPrice(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	carConfigID, err := strconv.ParseInt(chi.URLParam(r, "carConfigID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid car config id"))
		return
	}
	var req setPriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	if err := h.service.SetDealerPrice(r.Context(), id.DealerID, carConfigID, req.DealerPrice); err != nil {
		h.logger.Error("set dealer price", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Get(r.Context(), id.DealerID, carConfigID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}
