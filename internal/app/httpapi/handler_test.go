package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/shoplink/marketplace/internal/app"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	application, err := app.New(app.Options{}, nil)
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	return NewHandler(application)
}

func doJSON(t *testing.T, h http.Handler, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/health", 0, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
}

func TestUserShopFlow(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/users", 0, map[string]any{
		"handle": 42, "name": "Alice", "username": "alice",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert user: %d %s", rec.Code, rec.Body)
	}
	var u struct{ ID int64 }
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode user: %v", err)
	}

	rec = doJSON(t, h, http.MethodPost, "/shops", u.ID, map[string]any{"name": "Flowers"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create shop: %d %s", rec.Code, rec.Body)
	}

	// A second shop for the same owner is refused.
	rec = doJSON(t, h, http.MethodPost, "/shops", u.ID, map[string]any{"name": "Second"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second shop: want 400, got %d", rec.Code)
	}

	// Mutations without identity are unauthorized.
	rec = doJSON(t, h, http.MethodPost, "/shops", 0, map[string]any{"name": "Anon"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous shop: want 401, got %d", rec.Code)
	}
}

func TestNotFoundTranslation(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/shops/999", 0, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing shop: want 404, got %d", rec.Code)
	}
}

func TestQuotaTranslatesToConflict(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/users", 0, map[string]any{"handle": 1, "name": "o", "username": "o"})
	var u struct{ ID int64 }
	_ = json.Unmarshal(rec.Body.Bytes(), &u)

	rec = doJSON(t, h, http.MethodPost, "/shops", u.ID, map[string]any{"name": "Flowers"})
	var sh struct{ ID int64 }
	_ = json.Unmarshal(rec.Body.Bytes(), &sh)

	rec = doJSON(t, h, http.MethodPost, "/categories", u.ID, map[string]any{"name": "Bouquets", "slug": "bouquets"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("category: %d %s", rec.Code, rec.Body)
	}
	var cat struct{ ID int64 }
	_ = json.Unmarshal(rec.Body.Bytes(), &cat)

	// No subscription: quota is zero, so an active product conflicts.
	rec = doJSON(t, h, http.MethodPost, "/products", u.ID, map[string]any{
		"shop_id": sh.ID, "category_id": cat.ID, "title": "Roses", "price": "100", "is_active": true,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("quota refusal: want 409, got %d %s", rec.Code, rec.Body)
	}
}

func TestPromoPreviewRejection(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/users", 0, map[string]any{"handle": 1, "name": "b", "username": "b"})
	var u struct{ ID int64 }
	_ = json.Unmarshal(rec.Body.Bytes(), &u)

	rec = doJSON(t, h, http.MethodPost, "/promos/preview", u.ID, map[string]any{
		"shop_id": 1, "code": "NOPE", "subtotal": "1000",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown promo: want 422, got %d %s", rec.Code, rec.Body)
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Reason != "unknown" {
		t.Fatalf("reason: want unknown, got %q", body.Reason)
	}
}
