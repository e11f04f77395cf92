package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vendible/bookstock/internal/app"
	"github.com/vendible/bookstock/internal/domain"
)

// CartCreator is the minimal interface needed to open a cart.
type CartCreator interface {
	CreateCart(ctx context.Context) (domain.Cart, error)
}

// CartAPI is the interface the cart sub-routes dispatch to.
type CartAPI interface {
	GetCart(ctx context.Context, cartID string) (domain.Cart, error)
	Items(ctx context.Context, cartID string) ([]domain.CartItem, error)
	Total(ctx context.Context, cartID string) (int64, error)
	AddToCart(ctx context.Context, in app.AddToCartInput) (domain.CartItem, error)
	AddBooking(ctx context.Context, in app.AddBookingInput) (domain.CartItem, error)
	SetDates(ctx context.Context, cartID string, from, until *time.Time, validateAvailability bool) (domain.Cart, error)
	ValidateBookings(ctx context.Context, cartID string) ([]string, error)
	Checkout(ctx context.Context, in app.CheckoutInput) (domain.Cart, error)
	RemoveItem(ctx context.Context, cartID, cartItemID string) error
	Clear(ctx context.Context, cartID string) error
	Abandon(ctx context.Context, cartID string) (domain.Cart, error)
}

// HandleCarts returns an HTTP handler for opening carts.
func HandleCarts(svc CartCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		cart, err := svc.CreateCart(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(cartResponseFrom(cart, nil, 0))
	}
}

// HandleCart returns an HTTP handler for everything under /carts/{id}.
func HandleCart(svc CartAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 || parts[0] != "carts" || parts[1] == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		cartID := parts[1]

		switch {
		case len(parts) == 2:
			getCart(w, r, svc, cartID)
		case len(parts) == 3 && parts[2] == "items":
			cartItems(w, r, svc, cartID)
		case len(parts) == 4 && parts[2] == "items" && parts[3] != "":
			removeCartItem(w, r, svc, cartID, parts[3])
		case len(parts) == 3 && parts[2] == "bookings":
			addBooking(w, r, svc, cartID)
		case len(parts) == 3 && parts[2] == "dates":
			setCartDates(w, r, svc, cartID)
		case len(parts) == 3 && parts[2] == "validation":
			validateCart(w, r, svc, cartID)
		case len(parts) == 3 && parts[2] == "checkout":
			checkoutCart(w, r, svc, cartID)
		case len(parts) == 3 && parts[2] == "abandon":
			abandonCart(w, r, svc, cartID)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func getCart(w http.ResponseWriter, r *http.Request, svc CartAPI, cartID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	cart, err := svc.GetCart(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	items, err := svc.Items(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	total, err := svc.Total(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cartResponseFrom(cart, items, total))
}

func cartItems(w http.ResponseWriter, r *http.Request, svc CartAPI, cartID string) {
	switch r.Method {
	case http.MethodPost:
		var req addItemRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		from, until, ok := parseWindow(w, req.From, req.Until)
		if !ok {
			return
		}

		line, err := svc.AddToCart(r.Context(), app.AddToCartInput{
			CartID:   cartID,
			ItemID:   req.ItemID,
			Quantity: req.Quantity,
			From:     from,
			Until:    until,
			Meta:     req.Meta,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(cartItemResponseFrom(line))
	case http.MethodDelete:
		if err := svc.Clear(r.Context(), cartID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	}
}

func removeCartItem(w http.ResponseWriter, r *http.Request, svc CartAPI, cartID, lineID string) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	if err := svc.RemoveItem(r.Context(), cartID, lineID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func addBooking(w http.ResponseWriter, r *http.Request, svc CartAPI, cartID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	var req addBookingRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidDateRange, "invalid from date")
		return
	}
	until, err := time.Parse(time.RFC3339, req.Until)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidDateRange, "invalid until date")
		return
	}

	line, err := svc.AddBooking(r.Context(), app.AddBookingInput{
		CartID:   cartID,
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		From:     from,
		Until:    until,
		Meta:     req.Meta,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(cartItemResponseFrom(line))
}

func setCartDates(w http.ResponseWriter, r *http.Request, svc CartAPI, cartID string) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	var req setDatesRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	from, until, ok := parseWindow(w, req.From, req.Until)
	if !ok {
		return
	}

	cart, err := svc.SetDates(r.Context(), cartID, from, until, req.Validate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items, err := svc.Items(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	total, err := svc.Total(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cartResponseFrom(cart, items, total))
}

func validateCart(w http.ResponseWriter, r *http.Request, svc CartAPI, cartID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	problems, err := svc.ValidateBookings(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if problems == nil {
		problems = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(validationResponse{
		Ready:    len(problems) == 0,
		Problems: problems,
	})
}

func checkoutCart(w http.ResponseWriter, r *http.Request, svc CartAPI, cartID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	var req checkoutRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	cart, err := svc.Checkout(r.Context(), app.CheckoutInput{
		CartID:      cartID,
		PurchaseRef: req.PurchaseRef,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items, err := svc.Items(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	total, err := svc.Total(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cartResponseFrom(cart, items, total))
}

func abandonCart(w http.ResponseWriter, r *http.Request, svc CartAPI, cartID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	cart, err := svc.Abandon(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cartResponseFrom(cart, nil, 0))
}

// parseWindow parses an optional [from, until) window. Empty strings mean no
// date. A half window is allowed here; the services decide whether that is
// acceptable for the operation.
func parseWindow(w http.ResponseWriter, fromRaw, untilRaw string) (from, until *time.Time, ok bool) {
	if fromRaw != "" {
		parsed, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidDateRange, "invalid from date")
			return nil, nil, false
		}
		from = &parsed
	}
	if untilRaw != "" {
		parsed, err := time.Parse(time.RFC3339, untilRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidDateRange, "invalid until date")
			return nil, nil, false
		}
		until = &parsed
	}
	return from, until, true
}

type addItemRequest struct {
	ItemID   string         `json:"item_id"`
	Quantity int            `json:"quantity"`
	From     string         `json:"from,omitempty"`
	Until    string         `json:"until,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

type addBookingRequest struct {
	ItemID   string         `json:"item_id"`
	Quantity int            `json:"quantity"`
	From     string         `json:"from"`
	Until    string         `json:"until"`
	Meta     map[string]any `json:"meta,omitempty"`
}

type setDatesRequest struct {
	From     string `json:"from,omitempty"`
	Until    string `json:"until,omitempty"`
	Validate bool   `json:"validate,omitempty"`
}

type checkoutRequest struct {
	PurchaseRef string `json:"purchase_ref,omitempty"`
}

type validationResponse struct {
	Ready    bool     `json:"ready"`
	Problems []string `json:"problems"`
}

type cartResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	FromDate  *time.Time         `json:"from_date,omitempty"`
	UntilDate *time.Time         `json:"until_date,omitempty"`
	Items     []cartItemResponse `json:"items"`
	Total     int64              `json:"total"`
	CreatedAt time.Time          `json:"created_at"`
}

type cartItemResponse struct {
	ID          string         `json:"id"`
	ItemID      string         `json:"item_id"`
	PriceID     *string        `json:"price_id,omitempty"`
	Quantity    int            `json:"quantity"`
	UnitPrice   *int64         `json:"unit_price,omitempty"`
	Subtotal    *int64         `json:"subtotal,omitempty"`
	From        *time.Time     `json:"from,omitempty"`
	Until       *time.Time     `json:"until,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	PurchaseRef *string        `json:"purchase_ref,omitempty"`
}

func cartResponseFrom(cart domain.Cart, items []domain.CartItem, total int64) cartResponse {
	lines := make([]cartItemResponse, 0, len(items))
	for _, li := range items {
		lines = append(lines, cartItemResponseFrom(li))
	}
	return cartResponse{
		ID:        cart.ID,
		Status:    string(cart.Status),
		FromDate:  cart.FromDate,
		UntilDate: cart.UntilDate,
		Items:     lines,
		Total:     total,
		CreatedAt: cart.CreatedAt,
	}
}

func cartItemResponseFrom(li domain.CartItem) cartItemResponse {
	return cartItemResponse{
		ID:          li.ID,
		ItemID:      li.ItemID,
		PriceID:     li.PriceID,
		Quantity:    li.Quantity,
		UnitPrice:   li.UnitPrice,
		Subtotal:    li.Subtotal,
		From:        li.From,
		Until:       li.Until,
		Meta:        li.Meta,
		PurchaseRef: li.PurchaseRef,
	}
}
