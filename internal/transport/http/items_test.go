package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vendible/bookstock/internal/app"
	"github.com/vendible/bookstock/internal/domain"
)

func TestHandleAdminItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "create item",
			method:         http.MethodPost,
			body:           `{"name":"Widget","kind":"simple","manages_stock":true}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"name":"Widget"`,
		},
		{
			name:           "create pool with strategy",
			method:         http.MethodPost,
			body:           `{"name":"Parking","kind":"pool","pricing_strategy":"highest"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid json",
			method:         http.MethodPost,
			body:           `{"name":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad kind",
			method:         http.MethodPost,
			body:           `{"name":"Widget","kind":"mystery"}`,
			serviceErr:     &domain.InvalidOperationError{ItemName: "Widget", Kind: "mystery", Op: "create"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "list items",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectedSubstr: `"name":"Widget"`,
		},
		{
			name:           "delete not allowed",
			method:         http.MethodDelete,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubCatalogService{
				item: domain.Item{ID: "itm-1", Name: "Widget", Kind: domain.ItemKindSimple, ManagesStock: true},
				err:  tt.serviceErr,
			}
			var body *bytes.Buffer
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			} else {
				body = &bytes.Buffer{}
			}
			req := httptest.NewRequest(tt.method, "/admin/items", body)
			rec := httptest.NewRecorder()

			HandleAdminItems(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleAdminItemPricesAndMembers(t *testing.T) {
	t.Parallel()

	t.Run("add price", func(t *testing.T) {
		t.Parallel()
		svc := &stubCatalogService{
			price: domain.Price{ID: "prc-1", ItemID: "itm-1", UnitAmount: 5000, Currency: "EUR", IsDefault: true, Kind: domain.PriceKindOneTime},
		}
		body := `{"unit_amount":5000,"currency":"EUR","is_default":true}`
		req := httptest.NewRequest(http.MethodPost, "/admin/items/itm-1/prices", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		HandleAdminItem(svc, &stubStockService{}, &stubAvailabilityService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		if svc.priceIn.Kind != domain.PriceKindOneTime {
			t.Fatalf("expected one_time default kind, got %q", svc.priceIn.Kind)
		}
		if !strings.Contains(rec.Body.String(), `"unit_amount":5000`) {
			t.Fatalf("expected amount in response, got %q", rec.Body.String())
		}
	})

	t.Run("attach member", func(t *testing.T) {
		t.Parallel()
		svc := &stubCatalogService{}
		req := httptest.NewRequest(http.MethodPost, "/admin/items/pool-1/members", bytes.NewBufferString(`{"member_id":"itm-2"}`))
		rec := httptest.NewRecorder()

		HandleAdminItem(svc, &stubStockService{}, &stubAvailabilityService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d (%s)", rec.Code, rec.Body.String())
		}
		if svc.attachedPool != "pool-1" || svc.attachedMember != "itm-2" {
			t.Fatalf("expected attach to reach the service, got %q/%q", svc.attachedPool, svc.attachedMember)
		}
	})

	t.Run("attach duplicate", func(t *testing.T) {
		t.Parallel()
		svc := &stubCatalogService{err: domain.ErrInvalidOperation}
		req := httptest.NewRequest(http.MethodPost, "/admin/items/pool-1/members", bytes.NewBufferString(`{"member_id":"itm-2"}`))
		rec := httptest.NewRecorder()

		HandleAdminItem(svc, &stubStockService{}, &stubAvailabilityService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status 422, got %d", rec.Code)
		}
	})

	t.Run("list members", func(t *testing.T) {
		t.Parallel()
		svc := &stubCatalogService{
			members: []domain.Item{
				{ID: "itm-2", Name: "Space 1", Kind: domain.ItemKindBooking},
				{ID: "itm-3", Name: "Space 2", Kind: domain.ItemKindBooking},
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/admin/items/pool-1/members", nil)
		rec := httptest.NewRecorder()

		HandleAdminItem(svc, &stubStockService{}, &stubAvailabilityService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"name":"Space 2"`) {
			t.Fatalf("expected members in response, got %q", rec.Body.String())
		}
	})
}

func TestHandleAdminItemStock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		wantIncrease   int
		wantDecrease   int
	}{
		{
			name:           "increase",
			body:           `{"delta":5}`,
			expectedStatus: http.StatusOK,
			wantIncrease:   5,
		},
		{
			name:           "decrease",
			body:           `{"delta":-3}`,
			expectedStatus: http.StatusOK,
			wantDecrease:   3,
		},
		{
			name:           "zero delta",
			body:           `{"delta":0}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "item not found",
			body:           `{"delta":5}`,
			serviceErr:     domain.ErrItemNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unmanaged item",
			body:           `{"delta":5}`,
			serviceErr:     &domain.InvalidOperationError{ItemName: "Service Fee", Kind: domain.ItemKindExternal, Op: "increase stock"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stock := &stubStockService{available: 7, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/admin/items/itm-1/stock", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			HandleAdminItem(&stubCatalogService{}, stock, &stubAvailabilityService{}).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.wantIncrease != 0 && stock.increased != tt.wantIncrease {
				t.Fatalf("expected increase of %d, got %d", tt.wantIncrease, stock.increased)
			}
			if tt.wantDecrease != 0 && stock.decreased != tt.wantDecrease {
				t.Fatalf("expected decrease of %d, got %d", tt.wantDecrease, stock.decreased)
			}
		})
	}
}

func TestHandleAdminItemAvailability(t *testing.T) {
	t.Parallel()

	item := domain.Item{ID: "itm-1", Name: "Widget", Kind: domain.ItemKindSimple, ManagesStock: true}

	t.Run("total capacity", func(t *testing.T) {
		t.Parallel()
		avail := &stubAvailabilityService{hasMore: 4}
		req := httptest.NewRequest(http.MethodGet, "/admin/items/itm-1/availability?cart_id=cart-1", nil)
		rec := httptest.NewRecorder()

		HandleAdminItem(&stubCatalogService{item: item}, &stubStockService{}, avail).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		if avail.lastCartID != "cart-1" {
			t.Fatalf("expected cart id to reach the resolver, got %q", avail.lastCartID)
		}
		if !strings.Contains(rec.Body.String(), `"available":4`) {
			t.Fatalf("expected availability in response, got %q", rec.Body.String())
		}
	})

	t.Run("date range", func(t *testing.T) {
		t.Parallel()
		avail := &stubAvailabilityService{ranged: 2}
		url := "/admin/items/itm-1/availability?from=2025-07-01T00:00:00Z&until=2025-07-03T00:00:00Z"
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()

		HandleAdminItem(&stubCatalogService{item: item}, &stubStockService{}, avail).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		if !avail.rangedCalled {
			t.Fatalf("expected date-ranged resolver to be used")
		}
		if !strings.Contains(rec.Body.String(), `"available":2`) {
			t.Fatalf("expected availability in response, got %q", rec.Body.String())
		}
	})

	t.Run("half window rejected", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/admin/items/itm-1/availability?from=2025-07-01T00:00:00Z", nil)
		rec := httptest.NewRecorder()

		HandleAdminItem(&stubCatalogService{item: item}, &stubStockService{}, &stubAvailabilityService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("unlimited item", func(t *testing.T) {
		t.Parallel()
		avail := &stubAvailabilityService{hasMore: domain.UnlimitedStock}
		req := httptest.NewRequest(http.MethodGet, "/admin/items/itm-1/availability", nil)
		rec := httptest.NewRecorder()

		HandleAdminItem(&stubCatalogService{item: item}, &stubStockService{}, avail).ServeHTTP(rec, req)

		if !strings.Contains(rec.Body.String(), `"unlimited":true`) {
			t.Fatalf("expected unlimited flag, got %q", rec.Body.String())
		}
	})
}

func TestHandleAdminItemClaims(t *testing.T) {
	t.Parallel()

	ref := "purchase-1"
	stock := &stubStockService{
		claims: []domain.LedgerEntry{
			{ID: "clm-1", ItemID: "itm-1", Kind: domain.LedgerEntryClaim, Quantity: 2, Reference: &ref},
		},
	}

	t.Run("pending by default", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/admin/items/itm-1/claims", nil)
		rec := httptest.NewRecorder()

		HandleAdminItem(&stubCatalogService{}, stock, &stubAvailabilityService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"reference":"purchase-1"`) {
			t.Fatalf("expected claim in response, got %q", rec.Body.String())
		}
	})

	t.Run("unknown state", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/admin/items/itm-1/claims?state=sideways", nil)
		rec := httptest.NewRecorder()

		HandleAdminItem(&stubCatalogService{}, stock, &stubAvailabilityService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandleReleaseClaim(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			path:           "/admin/claims/clm-1/release",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"released":true`,
		},
		{
			name:           "missing claim",
			path:           "/admin/claims/clm-9/release",
			serviceErr:     domain.ErrClaimNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad path",
			path:           "/admin/claims/release",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "internal error",
			path:           "/admin/claims/clm-1/release",
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReleaseService{released: true, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			rec := httptest.NewRecorder()

			HandleReleaseClaim(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

type stubCatalogService struct {
	item    domain.Item
	price   domain.Price
	members []domain.Item
	err     error

	priceIn        app.AddPriceInput
	attachedPool   string
	attachedMember string
}

func (s *stubCatalogService) CreateItem(_ context.Context, _ app.CreateItemInput) (domain.Item, error) {
	if s.err != nil {
		return domain.Item{}, s.err
	}
	return s.item, nil
}

func (s *stubCatalogService) ListItems(_ context.Context) ([]domain.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Item{s.item}, nil
}

func (s *stubCatalogService) GetItem(_ context.Context, _ string) (domain.Item, error) {
	if s.err != nil {
		return domain.Item{}, s.err
	}
	return s.item, nil
}

func (s *stubCatalogService) AddPrice(_ context.Context, in app.AddPriceInput) (domain.Price, error) {
	s.priceIn = in
	if s.err != nil {
		return domain.Price{}, s.err
	}
	return s.price, nil
}

func (s *stubCatalogService) AttachMember(_ context.Context, poolID, memberID string) error {
	s.attachedPool, s.attachedMember = poolID, memberID
	return s.err
}

func (s *stubCatalogService) ListMembers(_ context.Context, _ string) ([]domain.Item, error) {
	return s.members, s.err
}

type stubStockService struct {
	available int
	claims    []domain.LedgerEntry
	err       error

	increased int
	decreased int
}

func (s *stubStockService) IncreaseStock(_ context.Context, _ string, quantity int) (int, error) {
	s.increased = quantity
	if s.err != nil {
		return 0, s.err
	}
	return s.available, nil
}

func (s *stubStockService) DecreaseStock(_ context.Context, _ string, quantity int) (int, error) {
	s.decreased = quantity
	if s.err != nil {
		return 0, s.err
	}
	return s.available, nil
}

func (s *stubStockService) PendingClaims(_ context.Context, _ string) ([]domain.LedgerEntry, error) {
	return s.claims, s.err
}

func (s *stubStockService) ActiveClaims(_ context.Context, _ string) ([]domain.LedgerEntry, error) {
	return s.claims, s.err
}

func (s *stubStockService) ReleasedClaims(_ context.Context, _ string) ([]domain.LedgerEntry, error) {
	return s.claims, s.err
}

type stubAvailabilityService struct {
	hasMore      int
	ranged       int
	err          error
	lastCartID   string
	rangedCalled bool
}

func (s *stubAvailabilityService) GetHasMore(_ context.Context, _ domain.Item, cartID string) (int, error) {
	s.lastCartID = cartID
	return s.hasMore, s.err
}

func (s *stubAvailabilityService) AvailableForDateRange(_ context.Context, _ domain.Item, _, _ time.Time, cartID string) (int, error) {
	s.rangedCalled = true
	s.lastCartID = cartID
	return s.ranged, s.err
}

type stubReleaseService struct {
	released bool
	err      error
}

func (s *stubReleaseService) Release(_ context.Context, _ string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.released, nil
}
