package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/vendible/bookstock/internal/app"
	"github.com/vendible/bookstock/internal/domain"
)

// AdminCatalog is the minimal interface needed for the item collection
// endpoints.
type AdminCatalog interface {
	CreateItem(ctx context.Context, in app.CreateItemInput) (domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
}

// AdminItemService serves the single-item admin sub-routes.
type AdminItemService interface {
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	AddPrice(ctx context.Context, in app.AddPriceInput) (domain.Price, error)
	AttachMember(ctx context.Context, poolID, memberID string) error
	ListMembers(ctx context.Context, poolID string) ([]domain.Item, error)
}

// StockAdjuster is the minimal interface needed for stock deltas.
type StockAdjuster interface {
	IncreaseStock(ctx context.Context, itemID string, quantity int) (int, error)
	DecreaseStock(ctx context.Context, itemID string, quantity int) (int, error)
	PendingClaims(ctx context.Context, itemID string) ([]domain.LedgerEntry, error)
	ActiveClaims(ctx context.Context, itemID string) ([]domain.LedgerEntry, error)
	ReleasedClaims(ctx context.Context, itemID string) ([]domain.LedgerEntry, error)
}

// AvailabilityResolver answers availability questions for an item.
type AvailabilityResolver interface {
	GetHasMore(ctx context.Context, item domain.Item, cartID string) (int, error)
	AvailableForDateRange(ctx context.Context, item domain.Item, from, until time.Time, cartID string) (int, error)
}

// HandleAdminItems returns an HTTP handler for item creation and listing.
func HandleAdminItems(svc AdminCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			items, err := svc.ListItems(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			resp := make([]itemResponse, 0, len(items))
			for _, item := range items {
				resp = append(resp, itemResponseFrom(item))
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		case http.MethodPost:
			var req createItemRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			var strategy *domain.PoolPricingStrategy
			if req.PricingStrategy != "" {
				s := domain.PoolPricingStrategy(req.PricingStrategy)
				strategy = &s
			}

			item, err := svc.CreateItem(r.Context(), app.CreateItemInput{
				Name:            req.Name,
				Kind:            domain.ItemKind(req.Kind),
				ManagesStock:    req.ManagesStock,
				PricingStrategy: strategy,
			})
			if err != nil {
				writeServiceError(w, err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(itemResponseFrom(item))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminItem returns an HTTP handler for everything under
// /admin/items/{id}: the item itself, its prices, pool members, stock deltas,
// claims and availability queries.
func HandleAdminItem(catalog AdminItemService, stock StockAdjuster, availability AvailabilityResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 3 || parts[0] != "admin" || parts[1] != "items" || parts[2] == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		itemID := parts[2]

		switch {
		case len(parts) == 3:
			getAdminItem(w, r, catalog, itemID)
		case len(parts) == 4 && parts[3] == "prices":
			addItemPrice(w, r, catalog, itemID)
		case len(parts) == 4 && parts[3] == "members":
			poolMembers(w, r, catalog, itemID)
		case len(parts) == 4 && parts[3] == "stock":
			adjustStock(w, r, stock, itemID)
		case len(parts) == 4 && parts[3] == "claims":
			listClaims(w, r, stock, itemID)
		case len(parts) == 4 && parts[3] == "availability":
			itemAvailability(w, r, catalog, availability, itemID)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func getAdminItem(w http.ResponseWriter, r *http.Request, svc AdminItemService, itemID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	item, err := svc.GetItem(r.Context(), itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(itemResponseFrom(item))
}

func addItemPrice(w http.ResponseWriter, r *http.Request, svc AdminItemService, itemID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	var req addPriceRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	kind := domain.PriceKind(req.Kind)
	if req.Kind == "" {
		kind = domain.PriceKindOneTime
	}

	price, err := svc.AddPrice(r.Context(), app.AddPriceInput{
		ItemID:     itemID,
		UnitAmount: req.UnitAmount,
		Currency:   req.Currency,
		IsDefault:  req.IsDefault,
		Kind:       kind,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(priceResponse{
		ID:         price.ID,
		ItemID:     price.ItemID,
		UnitAmount: price.UnitAmount,
		Currency:   price.Currency,
		IsDefault:  price.IsDefault,
		Kind:       string(price.Kind),
	})
}

func poolMembers(w http.ResponseWriter, r *http.Request, svc AdminItemService, poolID string) {
	switch r.Method {
	case http.MethodGet:
		members, err := svc.ListMembers(r.Context(), poolID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := make([]itemResponse, 0, len(members))
		for _, member := range members {
			resp = append(resp, itemResponseFrom(member))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	case http.MethodPost:
		var req attachMemberRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := svc.AttachMember(r.Context(), poolID, req.MemberID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	}
}

func adjustStock(w http.ResponseWriter, r *http.Request, svc StockAdjuster, itemID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	var req adjustStockRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, "delta must not be zero")
		return
	}

	var (
		available int
		err       error
	)
	if req.Delta > 0 {
		available, err = svc.IncreaseStock(r.Context(), itemID, req.Delta)
	} else {
		available, err = svc.DecreaseStock(r.Context(), itemID, -req.Delta)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stockResponse{ItemID: itemID, Available: available})
}

func listClaims(w http.ResponseWriter, r *http.Request, svc StockAdjuster, itemID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	var (
		claims []domain.LedgerEntry
		err    error
	)
	switch state := r.URL.Query().Get("state"); state {
	case "", "pending":
		claims, err = svc.PendingClaims(r.Context(), itemID)
	case "active":
		claims, err = svc.ActiveClaims(r.Context(), itemID)
	case "released":
		claims, err = svc.ReleasedClaims(r.Context(), itemID)
	default:
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unknown claim state")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]claimResponse, 0, len(claims))
	for _, claim := range claims {
		resp = append(resp, claimResponseFrom(claim))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func itemAvailability(w http.ResponseWriter, r *http.Request, catalog AdminItemService, availability AvailabilityResolver, itemID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	item, err := catalog.GetItem(r.Context(), itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	query := r.URL.Query()
	cartID := query.Get("cart_id")
	fromRaw := query.Get("from")
	untilRaw := query.Get("until")

	var available int
	if fromRaw != "" || untilRaw != "" {
		from, parseErr := time.Parse(time.RFC3339, fromRaw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, codeInvalidDateRange, "invalid from date")
			return
		}
		until, parseErr := time.Parse(time.RFC3339, untilRaw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, codeInvalidDateRange, "invalid until date")
			return
		}
		available, err = availability.AvailableForDateRange(r.Context(), item, from, until, cartID)
	} else {
		available, err = availability.GetHasMore(r.Context(), item, cartID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(availabilityResponse{
		ItemID:    itemID,
		Available: available,
		Unlimited: available == domain.UnlimitedStock,
	})
}

// ClaimReleaser is the minimal interface needed to release a claim.
type ClaimReleaser interface {
	Release(ctx context.Context, claimID string) (bool, error)
}

// HandleReleaseClaim returns an HTTP handler for releasing ledger claims.
func HandleReleaseClaim(svc ClaimReleaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		claimID, ok := parseReleaseClaimPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		released, err := svc.Release(r.Context(), claimID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(releaseResponse{ID: claimID, Released: released})
	}
}

func parseReleaseClaimPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", false
	}
	if parts[0] != "admin" || parts[1] != "claims" || parts[3] != "release" {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

type createItemRequest struct {
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	ManagesStock    bool   `json:"manages_stock"`
	PricingStrategy string `json:"pricing_strategy,omitempty"`
}

type itemResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Kind            string    `json:"kind"`
	ManagesStock    bool      `json:"manages_stock"`
	PricingStrategy *string   `json:"pricing_strategy,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func itemResponseFrom(item domain.Item) itemResponse {
	var strategy *string
	if item.PricingStrategy != nil {
		s := string(*item.PricingStrategy)
		strategy = &s
	}
	return itemResponse{
		ID:              item.ID,
		Name:            item.Name,
		Kind:            string(item.Kind),
		ManagesStock:    item.ManagesStock,
		PricingStrategy: strategy,
		CreatedAt:       item.CreatedAt,
	}
}

type addPriceRequest struct {
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	IsDefault  bool   `json:"is_default"`
	Kind       string `json:"kind,omitempty"`
}

type priceResponse struct {
	ID         string `json:"id"`
	ItemID     string `json:"item_id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	IsDefault  bool   `json:"is_default"`
	Kind       string `json:"kind"`
}

type attachMemberRequest struct {
	MemberID string `json:"member_id"`
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type stockResponse struct {
	ItemID    string `json:"item_id"`
	Available int    `json:"available"`
}

type availabilityResponse struct {
	ItemID    string `json:"item_id"`
	Available int    `json:"available"`
	Unlimited bool   `json:"unlimited"`
}

type claimResponse struct {
	ID           string     `json:"id"`
	ItemID       string     `json:"item_id"`
	Quantity     int        `json:"quantity"`
	ClaimedFrom  *time.Time `json:"claimed_from,omitempty"`
	ClaimedUntil *time.Time `json:"claimed_until,omitempty"`
	Reference    *string    `json:"reference,omitempty"`
	ReleasedAt   *time.Time `json:"released_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func claimResponseFrom(claim domain.LedgerEntry) claimResponse {
	return claimResponse{
		ID:           claim.ID,
		ItemID:       claim.ItemID,
		Quantity:     claim.Quantity,
		ClaimedFrom:  claim.ClaimedFrom,
		ClaimedUntil: claim.ClaimedUntil,
		Reference:    claim.Reference,
		ReleasedAt:   claim.ReleasedAt,
		CreatedAt:    claim.CreatedAt,
	}
}

type releaseResponse struct {
	ID       string `json:"id"`
	Released bool   `json:"released"`
}
