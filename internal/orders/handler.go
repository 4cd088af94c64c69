package orders

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk/internal/platform/httpx"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// Handler wires HTTP endpoints for the order workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers order routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{orderID}", h.get)
	r.Post("/{orderID}/details", h.addDetail)
	r.Put("/{orderID}/details/{detailID}", h.updateDetail)
	r.Delete("/{orderID}/details/{detailID}", h.deleteDetail)
	r.Put("/{orderID}/promotion", h.applyPromotion)
	r.Post("/{orderID}/finalize", h.finalize)
	r.Post("/{orderID}/cancel", h.cancel)
}

type createRequest struct {
	CustomerID    int64  `json:"customer_id" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

type addDetailRequest struct {
	CarConfigID int64 `json:"car_config_id" validate:"required,gt=0"`
	Quantity    int64 `json:"quantity" validate:"required,gt=0"`
}

type updateDetailRequest struct {
	Quantity   int64            `json:"quantity" validate:"required,gt=0"`
	FinalPrice *decimal.Decimal `json:"final_price"`
}

type applyPromotionRequest struct {
	PromotionID *int64 `json:"promotion_id"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	out, err := h.service.List(r.Context(), id)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), id, CreateInput{
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.logger.Error("create order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Get(r.Context(), id, orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) addDetail(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req addDetailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.AddDetail(r.Context(), id, orderID, AddDetailInput{
		CarConfigID: req.CarConfigID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.logger.Error("add order detail", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) updateDetail(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detailID, err := pathID(r, "detailID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateDetailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.UpdateDetail(r.Context(), id, orderID, detailID, UpdateDetailInput{
		Quantity:   req.Quantity,
		FinalPrice: req.FinalPrice,
	})
	if err != nil {
		h.logger.Error("update order detail", slog.Int64("detail_id", detailID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) deleteDetail(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detailID, err := pathID(r, "detailID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.DeleteDetail(r.Context(), id, orderID, detailID)
	if err != nil {
		h.logger.Error("delete order detail", slog.Int64("detail_id", detailID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) applyPromotion(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req applyPromotionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	out, err := h.service.ApplyPromotion(r.Context(), id, orderID, ApplyPromotionInput{PromotionID: req.PromotionID})
	if err != nil {
		h.logger.Error("apply promotion", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Finalize(r.Context(), id, orderID)
	if err != nil {
		h.logger.Error("finalize order", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Cancel(r.Context(), id, orderID); err != nil {
		h.logger.Error("cancel order", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func pathID(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, shared.Validationf("invalid %s", name)
	}
	return v, nil
}
