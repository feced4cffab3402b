package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/app"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
)

// Cataloger is the minimal interface needed by the admin variant handlers.
type Cataloger interface {
	CreateVariant(ctx context.Context, in app.CreateVariantInput) (domain.Variant, error)
	ListVariants(ctx context.Context, tenantID string) ([]domain.Variant, error)
	Restock(ctx context.Context, tenantID, variantID string, quantity int) (domain.Variant, error)
}

// HandleCreateVariant returns an HTTP handler for registering a variant with
// its opening stock.
func HandleCreateVariant(svc Cataloger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		var req createVariantRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		variant, err := svc.CreateVariant(r.Context(), app.CreateVariantInput{
			TenantID:    tenant,
			SKU:         req.SKU,
			StockOnHand: req.StockOnHand,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toVariantResponse(variant))
	}
}

// HandleListVariants returns an HTTP handler listing the tenant's variants.
func HandleListVariants(svc Cataloger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		variants, err := svc.ListVariants(r.Context(), tenant)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]variantResponse, 0, len(variants))
		for _, v := range variants {
			out = append(out, toVariantResponse(v))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleRestockVariant returns an HTTP handler for a manual positive stock
// adjustment.
func HandleRestockVariant(svc Cataloger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		var req restockRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		variant, err := svc.Restock(r.Context(), tenant, chi.URLParam(r, "id"), req.Quantity)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVariantResponse(variant))
	}
}

type createVariantRequest struct {
	SKU         string `json:"sku"`
	StockOnHand int    `json:"stock_on_hand"`
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

type variantResponse struct {
	ID          string `json:"id"`
	SKU         string `json:"sku"`
	StockOnHand int    `json:"stock_on_hand"`
}

func toVariantResponse(v domain.Variant) variantResponse {
	return variantResponse{
		ID:          v.ID,
		SKU:         v.SKU,
		StockOnHand: v.StockOnHand,
	}
}
