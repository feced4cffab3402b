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

// Reserver is the minimal interface needed by the reservation handlers.
type Reserver interface {
	Reserve(ctx context.Context, in app.ReserveInput) (domain.Reservation, error)
	ReleaseReservation(ctx context.Context, reservationID, tenantID string) error
	CleanupExpired(ctx context.Context) (int, error)
}

// HandleCreateReservation returns an HTTP handler that places a hold on
// variant stock. A request without ttl_minutes gets the configured default.
func HandleCreateReservation(svc Reserver, defaultTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		var req createReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		ttl := defaultTTL
		if req.TTLMinutes != nil {
			ttl = time.Duration(*req.TTLMinutes) * time.Minute
		}

		res, err := svc.Reserve(r.Context(), app.ReserveInput{
			TenantID:  tenant,
			VariantID: req.VariantID,
			OrderID:   req.OrderID,
			Quantity:  req.Quantity,
			TTL:       ttl,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, reservationResponse{
			ID:        res.ID,
			VariantID: res.VariantID,
			OrderID:   res.OrderID,
			Quantity:  res.Quantity,
			Status:    string(res.Status),
			ExpiresAt: res.ExpiresAt,
		})
	}
}

// HandleReleaseReservation returns an HTTP handler that releases a single
// reservation by id. Releasing an already-terminal reservation is a no-op
// and still answers 200.
func HandleReleaseReservation(svc Reserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		reservationID := chi.URLParam(r, "id")
		if err := svc.ReleaseReservation(r.Context(), reservationID, tenant); err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, releaseResponse{Status: "released"})
	}
}

// HandleCleanupExpired returns an HTTP handler that runs one expiry sweep on
// demand. The background sweeper calls the same service method; this endpoint
// exists so operators can force a pass.
func HandleCleanupExpired(svc Reserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		released, err := svc.CleanupExpired(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, cleanupResponse{Released: released})
	}
}

type createReservationRequest struct {
	VariantID  string `json:"variant_id"`
	OrderID    string `json:"order_id"`
	Quantity   int    `json:"quantity"`
	TTLMinutes *int   `json:"ttl_minutes"`
}

type reservationResponse struct {
	ID        string    `json:"id"`
	VariantID string    `json:"variant_id"`
	OrderID   string    `json:"order_id,omitempty"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type releaseResponse struct {
	Status string `json:"status"`
}

type cleanupResponse struct {
	Released int `json:"released"`
}
