package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/loyalty"
	"github.com/xenking/acidic-storefront/internal/domain/money"
	"github.com/xenking/acidic-storefront/internal/domain/order"
	"github.com/xenking/acidic-storefront/internal/domain/payment"
	"github.com/xenking/acidic-storefront/internal/domain/product"
	"github.com/xenking/acidic-storefront/internal/domain/promo"
	"github.com/xenking/acidic-storefront/internal/state"
	"github.com/xenking/acidic-storefront/internal/storefront"
)

// --- Helpers ---

type client struct {
	t      *testing.T
	server http.Handler
	id     string
}

func newTestServer(t *testing.T, payments payment.Processor) http.Handler {
	t.Helper()
	kv := state.NewMemory()
	orders := order.NewMemory()
	svc := storefront.New(storefront.Deps{
		State: kv,
		Catalog: product.NewMemory(
			product.Product{
				ID:       "tee",
				Name:     "Acid Tee",
				Price:    decimal.NewFromInt(200),
				Images:   []string{"tee.png"},
				Variants: product.Variants{Colors: []string{"black"}, Sizes: []string{"M", "L"}},
			},
			product.Product{ID: "cap", Name: "Acid Cap", Price: decimal.NewFromInt(350)},
		),
		Orders:   orders,
		Recorder: order.NewRecorder(orders),
		Loyalty:  loyalty.NewEngine(loyalty.NewStateStore(kv)),
		Promos: promo.NewService(promo.NewMemory(promo.Rule{
			Code:         "TEN",
			DiscountType: promo.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
		})),
		Payments: payments,
		Pricing:  cart.DefaultPricing(),
	})

	r := chi.NewRouter()
	r.Mount("/api", New(svc, money.NewFormatter("Rs.")).Routes())
	return r
}

func (c *client) do(method, path, body string) (int, map[string]any) {
	c.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if c.id != "" {
		req.Header.Set(HeaderClientID, c.id)
	}
	w := httptest.NewRecorder()
	c.server.ServeHTTP(w, req)

	if w.Body.Len() == 0 {
		return w.Code, nil
	}
	var out any
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	if out == nil {
		return w.Code, nil
	}
	if m, ok := out.(map[string]any); ok {
		return w.Code, m
	}
	return w.Code, map[string]any{"list": out}
}

func dec(t *testing.T, v any) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "want decimal string, got %T", v)
	return decimal.RequireFromString(s)
}

func obj(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

const validAddress = `{"fullName":"Bilal Ahmed","email":"bilal@example.com","phone":"03001234567",
	"street":"4 Mall Road","city":"Lahore","postalCode":"54000"}`

// --- Tests ---

func TestRequireClient(t *testing.T) {
	c := &client{t: t, server: newTestServer(t, payment.Immediate{})}

	code, body := c.do(http.MethodGet, "/api/cart", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["message"], HeaderClientID)

	code, body = c.do(http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["list"], 2)
}

func TestCheckoutJourney(t *testing.T) {
	c := &client{t: t, server: newTestServer(t, payment.Immediate{}), id: "tab-1"}

	code, body := c.do(http.MethodPost, "/api/session/user", `{"id":"u1","name":"Bilal"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(100), obj(body["profile"])["points"])

	code, body = c.do(http.MethodPost, "/api/cart/items", `{"productId":"tee","color":"black","size":"M","quantity":1}`)
	require.Equal(t, http.StatusOK, code)
	totals := obj(body["totals"])
	assert.True(t, dec(t, totals["grandTotal"]).Equal(decimal.NewFromInt(350)))
	assert.Equal(t, "Rs. 350.00", totals["display"])

	code, body = c.do(http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "address_capture", body["state"])

	code, body = c.do(http.MethodPost, "/api/checkout/address", `{"fullName":"Bilal"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	fields, _ := body["fields"].([]any)
	assert.NotEmpty(t, fields)

	code, body = c.do(http.MethodPost, "/api/checkout/address", validAddress)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "payment_pending", body["state"])
	assert.True(t, dec(t, body["lockedTotal"]).Equal(decimal.NewFromInt(350)))

	code, body = c.do(http.MethodPost, "/api/checkout/payment", "")
	require.Equal(t, http.StatusOK, code)
	award := obj(body["award"])
	assert.Equal(t, float64(35), award["earned"])
	assert.Equal(t, float64(135), award["newPoints"])
	placed := obj(body["order"])
	assert.Equal(t, "confirmed", placed["status"])

	code, body = c.do(http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["items"])

	code, body = c.do(http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["list"], 1)

	code, body = c.do(http.MethodGet, "/api/loyalty", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(135), obj(body["profile"])["points"])
	assert.Equal(t, "Silver", obj(body["progress"])["nextTier"])
	assert.Equal(t, float64(65), obj(body["progress"])["pointsNeeded"])

	code, _ = c.do(http.MethodPost, "/api/checkout/payment", "")
	assert.Equal(t, http.StatusConflict, code, "confirmed checkout cannot be paid twice")
}

func TestPromoAndFailedPayment(t *testing.T) {
	c := &client{t: t, server: newTestServer(t, payment.Immediate{Policy: payment.Decline("card declined")}), id: "tab-2"}

	code, _ := c.do(http.MethodPost, "/api/cart/items", `{"productId":"cap"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = c.do(http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodPost, "/api/checkout/promo", `{"code":"NOPE"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body := c.do(http.MethodPost, "/api/checkout/promo", `{"code":"ten"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, dec(t, body["lockedTotal"]).Equal(decimal.RequireFromString("465")))

	code, _ = c.do(http.MethodPost, "/api/checkout/address", validAddress)
	require.Equal(t, http.StatusOK, code)

	code, body = c.do(http.MethodPost, "/api/checkout/payment", "")
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Contains(t, body["message"], "card declined")

	code, body = c.do(http.MethodGet, "/api/checkout", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "address_capture", body["state"])
	assert.Equal(t, "Bilal Ahmed", obj(body["address"])["fullName"])

	code, body = c.do(http.MethodDelete, "/api/checkout", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "abandoned", body["state"])
}

func TestCartErrors(t *testing.T) {
	c := &client{t: t, server: newTestServer(t, payment.Immediate{}), id: "tab-3"}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown product", http.MethodPost, "/api/cart/items", `{"productId":"nope"}`, http.StatusNotFound},
		{"unknown variant", http.MethodPost, "/api/cart/items", `{"productId":"tee","color":"pink","size":"M"}`, http.StatusUnprocessableEntity},
		{"zero quantity", http.MethodPost, "/api/cart/items", `{"productId":"cap","quantity":0}`, http.StatusUnprocessableEntity},
		{"over limit", http.MethodPost, "/api/cart/items", `{"productId":"cap","quantity":100}`, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/api/cart/items", `{"productId":`, http.StatusBadRequest},
		{"bad index", http.MethodPut, "/api/cart/items/x", `{"quantity":1}`, http.StatusBadRequest},
		{"missing index", http.MethodDelete, "/api/cart/items/7", "", http.StatusNotFound},
		{"empty checkout", http.MethodPost, "/api/checkout", "", http.StatusUnprocessableEntity},
		{"guest loyalty", http.MethodGet, "/api/loyalty", "", http.StatusUnauthorized},
		{"sign in without id", http.MethodPost, "/api/session/user", `{"name":"x"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := c.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, float64(tt.status), body["code"])
		})
	}
}

func TestCartLineUpdates(t *testing.T) {
	c := &client{t: t, server: newTestServer(t, payment.Immediate{}), id: "tab-4"}

	c.do(http.MethodPost, "/api/cart/items", `{"productId":"cap","quantity":2}`)
	c.do(http.MethodPost, "/api/cart/items", `{"productId":"tee","color":"black","size":"L"}`)

	code, body := c.do(http.MethodPut, "/api/cart/items/0", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(6), obj(body["totals"])["itemCount"])

	code, body = c.do(http.MethodDelete, "/api/cart/items/0", "")
	require.Equal(t, http.StatusOK, code)
	items, _ := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "tee", obj(items[0])["productId"])

	code, body = c.do(http.MethodDelete, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, dec(t, obj(body["totals"])["grandTotal"]).IsZero())
}

func TestSessionUser(t *testing.T) {
	c := &client{t: t, server: newTestServer(t, payment.Immediate{}), id: "tab-5"}

	code, body := c.do(http.MethodGet, "/api/session/user", "")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body)

	c.do(http.MethodPost, "/api/session/user", `{"id":"u9","name":"Sara"}`)
	code, body = c.do(http.MethodGet, "/api/session/user", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u9", body["id"])

	code, body = c.do(http.MethodPost, "/api/loyalty/redeem", `{"points":40,"reason":"voucher"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(60), obj(body["profile"])["points"])

	code, _ = c.do(http.MethodPost, "/api/loyalty/redeem", `{"points":1000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = c.do(http.MethodDelete, "/api/session/user", "")
	assert.Equal(t, http.StatusNoContent, code)
}

func TestMapError_Unknown(t *testing.T) {
	status, msg := mapError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", msg)
}
