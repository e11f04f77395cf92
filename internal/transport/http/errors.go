package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vendible/bookstock/internal/domain"
)

const (
	codeMethodNotAllowed        = "method_not_allowed"
	codeNotFound                = "not_found"
	codeInvalidRequestBody      = "invalid_request_body"
	codeInvalidID               = "invalid_id"
	codeInvalidQuantity         = "invalid_quantity"
	codeInvalidDateRange        = "invalid_date_range"
	codeItemNotFound            = "item_not_found"
	codeCartNotFound            = "cart_not_found"
	codeCartItemNotFound        = "cart_item_not_found"
	codeClaimNotFound           = "claim_not_found"
	codeCartNotActive           = "cart_not_active"
	codeCartNotReady            = "cart_not_ready"
	codeHasNoPrice              = "has_no_price"
	codeHasNoDefaultPrice       = "has_no_default_price"
	codeNotEnoughStock          = "not_enough_stock"
	codeNotEnoughAvailable      = "not_enough_available"
	codeInvalidOperation        = "invalid_operation"
	codeMultiplePurchaseOptions = "multiple_purchase_options"
	codeForbidden               = "forbidden"
	codeInternalError           = "internal_error"
)

type errorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Problems []string `json:"problems,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps domain errors to HTTP responses. Domain errors wrap
// their sentinels, so matching goes through errors.Is/As rather than equality.
func writeServiceError(w http.ResponseWriter, err error) {
	var notReady *domain.CartNotReadyError
	if errors.As(err, &notReady) {
		writeErrorResponse(w, http.StatusConflict, errorResponse{
			Error:    notReady.Error(),
			Code:     codeCartNotReady,
			Problems: notReady.Problems,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrInvalidDateRange):
		writeError(w, http.StatusBadRequest, codeInvalidDateRange, err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, codeItemNotFound, err.Error())
	case errors.Is(err, domain.ErrCartNotFound):
		writeError(w, http.StatusNotFound, codeCartNotFound, err.Error())
	case errors.Is(err, domain.ErrCartItemNotFound):
		writeError(w, http.StatusNotFound, codeCartItemNotFound, err.Error())
	case errors.Is(err, domain.ErrClaimNotFound):
		writeError(w, http.StatusNotFound, codeClaimNotFound, err.Error())
	case errors.Is(err, domain.ErrCartNotActive):
		writeError(w, http.StatusConflict, codeCartNotActive, err.Error())
	case errors.Is(err, domain.ErrCartNotReady):
		writeError(w, http.StatusConflict, codeCartNotReady, err.Error())
	case errors.Is(err, domain.ErrNotEnoughStock):
		writeError(w, http.StatusConflict, codeNotEnoughStock, err.Error())
	case errors.Is(err, domain.ErrNotEnoughAvailable):
		writeError(w, http.StatusConflict, codeNotEnoughAvailable, err.Error())
	case errors.Is(err, domain.ErrHasNoPrice):
		writeError(w, http.StatusUnprocessableEntity, codeHasNoPrice, err.Error())
	case errors.Is(err, domain.ErrHasNoDefaultPrice):
		writeError(w, http.StatusUnprocessableEntity, codeHasNoDefaultPrice, err.Error())
	case errors.Is(err, domain.ErrMultiplePurchaseOptions):
		writeError(w, http.StatusUnprocessableEntity, codeMultiplePurchaseOptions, err.Error())
	case errors.Is(err, domain.ErrInvalidOperation):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidOperation, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
