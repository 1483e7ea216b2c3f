package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/acidic-storefront/internal/jsonx"
	"github.com/xenking/acidic-storefront/internal/storefront"
)

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, v *storefront.CartView, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, v) })
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Cart(r.Context(), ClientID(r.Context()))
	h.writeCart(w, r, v, err)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.ClearCart(r.Context(), ClientID(r.Context()))
	h.writeCart(w, r, v, err)
}

func (h *Handler) refreshCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.RefreshCart(r.Context(), ClientID(r.Context()))
	h.writeCart(w, r, v, err)
}

func decodeAddItem(d *jx.Decoder) (storefront.AddItemRequest, error) {
	req := storefront.AddItemRequest{Quantity: 1}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = d.Str()
		case "color":
			req.Color, err = d.Str()
		case "size":
			req.Size, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
		case "isCustomized":
			req.Customized, err = d.Bool()
		case "customizationFee":
			req.CustomizationFee, err = jsonx.DecodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req storefront.AddItemRequest
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		req, err = decodeAddItem(d)
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.AddItem(r.Context(), ClientID(r.Context()), req)
	h.writeCart(w, r, v, err)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var qty int
	if err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "quantity" {
				return d.Skip()
			}
			var err error
			qty, err = d.Int()
			return err
		})
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.SetQuantity(r.Context(), ClientID(r.Context()), idx, qty)
	h.writeCart(w, r, v, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.RemoveItem(r.Context(), ClientID(r.Context()), idx)
	h.writeCart(w, r, v, err)
}
