package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/acidic-storefront/internal/domain/user"
	"github.com/xenking/acidic-storefront/internal/storefront"
)

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.CurrentUser(r.Context(), ClientID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		if u == nil {
			e.Null()
			return
		}
		u.Encode(e)
	})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var u user.User
	if err := decodeBody(r, u.Decode); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.SignIn(r.Context(), ClientID(r.Context()), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("user")
		u.Encode(e)
		e.FieldStart("profile")
		p.Encode(e)
		e.ObjEnd()
	})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context(), ClientID(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeLoyalty(w http.ResponseWriter, r *http.Request, v *storefront.LoyaltyView, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeLoyalty(e, v) })
}

func (h *Handler) getLoyalty(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Loyalty(r.Context(), ClientID(r.Context()))
	h.writeLoyalty(w, r, v, err)
}

func (h *Handler) redeemPoints(w http.ResponseWriter, r *http.Request) {
	var (
		points int64
		reason string
	)
	if err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "points":
				points, err = d.Int64()
			case "reason":
				reason, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.RedeemPoints(r.Context(), ClientID(r.Context()), points, reason)
	h.writeLoyalty(w, r, v, err)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Orders(r.Context(), ClientID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Products(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}
