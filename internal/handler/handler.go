// Package handler exposes the storefront over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/acidic-storefront/internal/domain/money"
	"github.com/xenking/acidic-storefront/internal/storefront"
	"github.com/xenking/acidic-storefront/pkg/httpmiddleware"
)

// HeaderClientID identifies the browser session of a request.
const HeaderClientID = "X-Client-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Handler serves the storefront API.
type Handler struct {
	svc    *storefront.Service
	format *money.Formatter
}

// New returns a Handler over svc. Prices are additionally rendered with
// format for display.
func New(svc *storefront.Service, format *money.Formatter) *Handler {
	if format == nil {
		format = money.NewFormatter("")
	}
	return &Handler{svc: svc, format: format}
}

// Routes returns the API router, to be mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(requireClient)

		r.Get("/cart", h.getCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/items", h.addItem)
		r.Post("/cart/refresh", h.refreshCart)
		r.Put("/cart/items/{index}", h.setQuantity)
		r.Delete("/cart/items/{index}", h.removeItem)

		r.Get("/checkout", h.getCheckout)
		r.Post("/checkout", h.startCheckout)
		r.Delete("/checkout", h.abandonCheckout)
		r.Post("/checkout/address", h.submitAddress)
		r.Post("/checkout/promo", h.applyPromo)
		r.Post("/checkout/payment", h.submitPayment)
		r.Post("/checkout/confirm", h.confirmOrder)

		r.Get("/session/user", h.getUser)
		r.Post("/session/user", h.signIn)
		r.Delete("/session/user", h.signOut)

		r.Get("/loyalty", h.getLoyalty)
		r.Post("/loyalty/redeem", h.redeemPoints)
		r.Get("/orders", h.listOrders)
	})

	return r
}

type clientIDKey struct{}

// ClientID returns the client of the request context.
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}

func requireClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderClientID)
		if !httpmiddleware.ValidToken(id) {
			httpmiddleware.WriteError(w, http.StatusBadRequest, "missing or invalid "+HeaderClientID+" header")
			return
		}
		ctx := context.WithValue(r.Context(), clientIDKey{}, id)
		ctx = zctx.With(ctx, zap.String("client_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// badRequestError marks malformed input.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error, msg string) error {
	return &badRequestError{err: errors.Wrap(err, msg)}
}

// decodeBody reads the request body and runs fn over its JSON.
func decodeBody(r *http.Request, fn func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest(err, "read body")
	}
	if err := fn(jx.DecodeBytes(data)); err != nil {
		return badRequest(err, "decode body")
	}
	return nil
}

func indexParam(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, badRequest(err, "parse index")
	}
	return idx, nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
