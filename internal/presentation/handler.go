package presentation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/binodtmg/esewa-settlement-service/internal/application"
	"github.com/binodtmg/esewa-settlement-service/internal/domain"
	"github.com/binodtmg/esewa-settlement-service/internal/esewa"
	"github.com/binodtmg/esewa-settlement-service/internal/logger"
	"github.com/binodtmg/esewa-settlement-service/internal/metrics"
	"github.com/binodtmg/esewa-settlement-service/internal/presentation/helpers"
	"github.com/binodtmg/esewa-settlement-service/internal/repository"
)

// Client-facing messages stay generic; rejection detail lives in logs only,
// keyed by transaction_uuid.
const (
	msgInvalidPayment = "invalid payment data"
	msgNotVerified    = "payment could not be verified"
	msgDelayed        = "payment received but confirmation is delayed, contact support"
)

type SettlementHandler struct {
	svc       *application.SettlementService
	seedToken string
}

func NewSettlementHandler(svc *application.SettlementService, seedToken string) *SettlementHandler {
	return &SettlementHandler{svc: svc, seedToken: seedToken}
}

func (h *SettlementHandler) Register(r chi.Router) {
	r.Post("/api/orders/verify-payment", h.VerifyPayment)
	r.Post("/api/orders/esewa-webhook", h.EsewaWebhook)
	r.Get("/api/orders/{transaction_uuid}/status", h.OrderStatus)
	r.Post("/api/orders/seed", h.SeedOrder)
}

// VerifyPayment handles the client-relayed redirect payload: the browser
// lands on the success page with ?data=<base64> and the page forwards it
// here. Idempotent by construction.
func (h *SettlementHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	h.handleCallback(w, r, "verify-payment")
}

// EsewaWebhook handles the server-to-server delivery of the same message.
func (h *SettlementHandler) EsewaWebhook(w http.ResponseWriter, r *http.Request) {
	h.handleCallback(w, r, "esewa-webhook")
}

func (h *SettlementHandler) handleCallback(w http.ResponseWriter, r *http.Request, endpoint string) {
	msg, err := decodePayload(r)
	if err != nil {
		logger.Warn("callback rejected before trust decision", "endpoint", endpoint, "err", err)
		metrics.ObserveCallback(endpoint, "malformed")
		helpers.HttpError(w, http.StatusBadRequest, msgInvalidPayment)
		return
	}

	out, err := h.svc.Reconcile(r.Context(), msg)
	if err != nil {
		// no terminal decision: the order stays PENDING and a retry is safe
		logger.Warn("reconciliation not settled", "endpoint", endpoint,
			"transaction_uuid", msg.TransactionUUID, "err", err)
		metrics.ObserveCallback(endpoint, "deferred")
		helpers.HttpError(w, http.StatusServiceUnavailable, msgDelayed)
		return
	}

	metrics.ObserveCallback(endpoint, strings.ToLower(string(out.Code)))
	metrics.ObserveOutcome(string(out.Code))
	logger.Info("reconciliation outcome", "endpoint", endpoint,
		"transaction_uuid", msg.TransactionUUID, "outcome", out.Code,
		"reason", out.Reason, "order_status", out.OrderStatus)

	switch out.Code {
	case domain.SettledCompleted:
		helpers.WriteJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"order_status": out.OrderStatus,
		})
	case domain.AlreadySettled:
		if out.OrderStatus == domain.OrderCompleted {
			helpers.WriteJSON(w, http.StatusOK, map[string]any{
				"status":       "ok",
				"order_status": out.OrderStatus,
			})
			return
		}
		helpers.WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "failed",
			"message": msgNotVerified,
		})
	case domain.StockShortfall:
		helpers.WriteJSON(w, http.StatusConflict, map[string]any{
			"status":  "failed",
			"message": msgDelayed,
		})
	default: // SETTLED_FAILED, REJECTED
		helpers.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"status":  "failed",
			"message": msgNotVerified,
		})
	}
}

// decodePayload accepts the three delivery shapes: ?data=<base64>, a JSON
// body {"data": "<base64>"}, or the raw gateway fields as the JSON body.
func decodePayload(r *http.Request) (*domain.PaymentMessage, error) {
	if raw := r.URL.Query().Get("data"); raw != "" {
		return esewa.DecodeCallback(raw)
	}

	var body struct {
		Data string `json:"data"`

		TransactionCode  string `json:"transaction_code"`
		Status           string `json:"status"`
		TotalAmount      string `json:"total_amount"`
		TransactionUUID  string `json:"transaction_uuid"`
		ProductCode      string `json:"product_code"`
		SignedFieldNames string `json:"signed_field_names"`
		Signature        string `json:"signature"`
	}
	if err := helpers.DecodeJSON(r.Body, &body); err != nil {
		return nil, esewa.ErrMalformedEncoding
	}
	if body.Data != "" {
		return esewa.DecodeCallback(body.Data)
	}

	msg := &domain.PaymentMessage{
		TransactionCode:  body.TransactionCode,
		Status:           domain.GatewayStatus(body.Status),
		TotalAmount:      body.TotalAmount,
		TransactionUUID:  body.TransactionUUID,
		ProductCode:      body.ProductCode,
		SignedFieldNames: body.SignedFieldNames,
		Signature:        body.Signature,
	}
	if err := esewa.ValidateMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// OrderStatus is the idempotent echo for the success page's confirmatory
// second call.
func (h *SettlementHandler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(chi.URLParam(r, "transaction_uuid"))
	if uid == "" {
		helpers.HttpError(w, http.StatusBadRequest, "transaction_uuid is empty")
		return
	}

	o, err := h.svc.OrderStatus(r.Context(), uid)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			helpers.HttpError(w, http.StatusNotFound, "order not found")
			return
		}
		helpers.HttpError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"transaction_uuid": o.TransactionUUID,
		"order_status":     o.Status,
		"settled_at":       o.SettledAt,
	})
}

type seedRequest struct {
	TransactionUUID string `json:"transaction_uuid"`
	TotalAmount     int64  `json:"total_amount"`
	Items           []struct {
		ProductID string `json:"product_id"`
		Quantity  int64  `json:"quantity"`
		UnitPrice int64  `json:"unit_price"`
	} `json:"items"`
}

// SeedOrder stands in for the checkout collaborator in dev environments.
func (h *SettlementHandler) SeedOrder(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Admin-Token") != h.seedToken {
		helpers.HttpError(w, http.StatusUnauthorized, "admin token invalid")
		return
	}

	var req seedRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.TransactionUUID) == "" {
		helpers.HttpError(w, http.StatusBadRequest, "transaction_uuid is required")
		return
	}
	if req.TotalAmount <= 0 {
		helpers.HttpError(w, http.StatusBadRequest, "total_amount must be > 0")
		return
	}

	o := &domain.Order{TransactionUUID: req.TransactionUUID, TotalAmount: req.TotalAmount}
	for _, it := range req.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			helpers.HttpError(w, http.StatusBadRequest, "invalid product_id")
			return
		}
		o.Items = append(o.Items, domain.OrderItem{ProductID: pid, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	if err := h.svc.CreateOrder(r.Context(), o); err != nil {
		if errors.Is(err, repository.ErrOrderAlreadyExists) {
			helpers.HttpError(w, http.StatusConflict, "transaction_uuid already used")
			return
		}
		helpers.HttpError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, map[string]any{
		"status":           "ok",
		"order_id":         o.ID,
		"transaction_uuid": o.TransactionUUID,
	})
}
