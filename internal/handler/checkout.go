package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/acidic-storefront/internal/domain/checkout"
	"github.com/xenking/acidic-storefront/internal/domain/user"
)

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, s *checkout.Session, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeSession(e, s) })
}

func (h *Handler) writeReceipt(w http.ResponseWriter, r *http.Request, rc *checkout.Receipt, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeReceipt(e, rc) })
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Checkout(r.Context(), ClientID(r.Context()))
	h.writeSession(w, r, s, err)
}

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.StartCheckout(r.Context(), ClientID(r.Context()))
	h.writeSession(w, r, s, err)
}

func (h *Handler) abandonCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.AbandonCheckout(r.Context(), ClientID(r.Context()))
	h.writeSession(w, r, s, err)
}

func (h *Handler) submitAddress(w http.ResponseWriter, r *http.Request) {
	var a user.Address
	if err := decodeBody(r, a.Decode); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.svc.SubmitAddress(r.Context(), ClientID(r.Context()), a)
	h.writeSession(w, r, s, err)
}

func (h *Handler) applyPromo(w http.ResponseWriter, r *http.Request) {
	var code string
	if err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "code" {
				return d.Skip()
			}
			var err error
			code, err = d.Str()
			return err
		})
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.svc.ApplyPromo(r.Context(), ClientID(r.Context()), code)
	h.writeSession(w, r, s, err)
}

func (h *Handler) submitPayment(w http.ResponseWriter, r *http.Request) {
	rc, err := h.svc.SubmitPayment(r.Context(), ClientID(r.Context()))
	h.writeReceipt(w, r, rc, err)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	rc, err := h.svc.ConfirmOrder(r.Context(), ClientID(r.Context()))
	h.writeReceipt(w, r, rc, err)
}
