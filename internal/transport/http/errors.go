package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
)

const (
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidID            = "invalid_id"
	codeInvalidQuantity      = "invalid_quantity"
	codeInvalidTTL           = "invalid_ttl"
	codeSKURequired          = "sku_required"
	codeTenantRequired       = "tenant_required"
	codeUnknownStatus        = "unknown_status"
	codeInsufficientStock    = "insufficient_stock"
	codeInvalidTransition    = "invalid_transition"
	codeVariantNotFound      = "variant_not_found"
	codeVariantAlreadyExists = "variant_already_exists"
	codeReservationNotFound  = "reservation_not_found"
	codeOrderNotFound        = "order_not_found"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses. Anything
// unmapped is a persistence or transient failure and surfaces as a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrInvalidTTL):
		writeError(w, http.StatusBadRequest, codeInvalidTTL, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrSKURequired):
		writeError(w, http.StatusBadRequest, codeSKURequired, err.Error())
	case errors.Is(err, domain.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, codeUnknownStatus, err.Error())
	case errors.Is(err, domain.ErrVariantNotFound):
		writeError(w, http.StatusNotFound, codeVariantNotFound, err.Error())
	case errors.Is(err, domain.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrVariantAlreadyExists):
		writeError(w, http.StatusConflict, codeVariantAlreadyExists, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
