package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/app"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
)

// OrderTransitioner is the minimal interface needed by the order handlers.
type OrderTransitioner interface {
	CreateOrder(ctx context.Context, tenantID string) (domain.Order, error)
	TransitionTo(ctx context.Context, in app.TransitionInput) (domain.Order, error)
	GetOrder(ctx context.Context, orderID, tenantID string) (domain.Order, error)
}

// StockConfirmer consumes the reserved stock of an order after payment.
type StockConfirmer interface {
	Confirm(ctx context.Context, orderID, tenantID string) error
}

// HandleCreateOrder returns an HTTP handler that opens a new order in
// pending_payment.
func HandleCreateOrder(svc OrderTransitioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		order, err := svc.CreateOrder(r.Context(), tenant)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, orderResponse{
			ID:        order.ID,
			Status:    string(order.Status),
			CreatedAt: order.CreatedAt,
		})
	}
}

// HandleGetOrder returns an HTTP handler that loads one order.
func HandleGetOrder(svc OrderTransitioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		order, err := svc.GetOrder(r.Context(), chi.URLParam(r, "id"), tenant)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, orderResponse{
			ID:        order.ID,
			Status:    string(order.Status),
			CreatedAt: order.CreatedAt,
		})
	}
}

// HandleConfirmOrder returns an HTTP handler for the payment-confirmed step.
// The order transitions to confirmed first; only then is the reserved stock
// permanently consumed. Both halves are idempotent, so a client that saw a
// timeout can safely retry the whole call.
func HandleConfirmOrder(orders OrderTransitioner, stock StockConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		orderID := chi.URLParam(r, "id")
		order, err := orders.TransitionTo(r.Context(), app.TransitionInput{
			OrderID:  orderID,
			TenantID: tenant,
			Target:   domain.OrderStatusConfirmed,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		if err := stock.Confirm(r.Context(), orderID, tenant); err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, orderResponse{
			ID:        order.ID,
			Status:    string(order.Status),
			CreatedAt: order.CreatedAt,
		})
	}
}

// HandleTransitionOrder returns an HTTP handler that applies one lifecycle
// transition to an order.
func HandleTransitionOrder(svc OrderTransitioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		var req transitionRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		target, err := domain.ParseOrderStatus(req.Target)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		order, err := svc.TransitionTo(r.Context(), app.TransitionInput{
			OrderID:  chi.URLParam(r, "id"),
			TenantID: tenant,
			Target:   target,
			Reason:   req.Reason,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, orderResponse{
			ID:        order.ID,
			Status:    string(order.Status),
			CreatedAt: order.CreatedAt,
		})
	}
}

type transitionRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
