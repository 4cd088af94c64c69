package billing

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

// Handler wires HTTP endpoints for installment plans and payments.
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

// MountRoutes registers billing routes on provided router. Plans hang off the
// order, payment transitions address the payment directly.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders/{orderID}/installment", h.getInstallment)
	r.Post("/orders/{orderID}/installment", h.createInstallment)
	r.Put("/orders/{orderID}/installment", h.updateInstallment)
	r.Get("/orders/{orderID}/payments", h.listPayments)
	r.Post("/orders/{orderID}/payments", h.createPayment)
	r.Put("/payments/{paymentID}/status", h.updatePaymentStatus)
	r.Delete("/payments/{paymentID}", h.deletePayment)
}

type installmentRequest struct {
	TermCount    int64           `json:"term_count" validate:"required,gt=0"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Note         string          `json:"note"`
}

type paymentRequest struct {
	Method string `json:"method"`
	Note   string `json:"note"`
}

type paymentStatusRequest struct {
	Status PaymentStatus `json:"status" validate:"required"`
}

func (h *Handler) getInstallment(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	plan, err := h.service.GetInstallment(r.Context(), id, orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) createInstallment(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req installmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	plan, err := h.service.CreateInstallment(r.Context(), id, orderID, InstallmentInput{
		TermCount:    req.TermCount,
		InterestRate: req.InterestRate,
		Note:         req.Note,
	})
	if err != nil {
		h.logger.Error("create installment", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, plan)
}

func (h *Handler) updateInstallment(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req installmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	plan, err := h.service.UpdateInstallment(r.Context(), id, orderID, InstallmentInput{
		TermCount:    req.TermCount,
		InterestRate: req.InterestRate,
		Note:         req.Note,
	})
	if err != nil {
		h.logger.Error("update installment", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id, orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	p, err := h.service.CreatePayment(r.Context(), id, orderID, PaymentInput{
		Method: req.Method,
		Note:   req.Note,
	})
	if err != nil {
		h.logger.Error("create payment", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	paymentID, err := pathID(r, "paymentID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body"))
		return
	}
	p, err := h.service.UpdatePaymentStatus(r.Context(), id, paymentID, req.Status)
	if err != nil {
		h.logger.Error("update payment status", slog.Int64("payment_id", paymentID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	paymentID, err := pathID(r, "paymentID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeletePayment(r.Context(), id, paymentID); err != nil {
		h.logger.Error("delete payment", slog.Int64("payment_id", paymentID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func pathID(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, shared.Validationf("invalid %s", name)
	}
	return v, nil
}
