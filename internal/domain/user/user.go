// Package user holds the identity and address types shared by checkout and
// order recording. Authentication happens upstream; the storefront only keeps
// the signed-in user of each client under the currentUser key.
package user

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// User is an authenticated shopper.
type User struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Address is a shipping address captured during checkout.
type Address struct {
	FullName   string
	Email      string
	Phone      string
	Street     string
	City       string
	PostalCode string
}

// Normalize returns a copy with surrounding whitespace removed from every field.
func (a Address) Normalize() Address {
	return Address{
		FullName:   strings.TrimSpace(a.FullName),
		Email:      strings.TrimSpace(a.Email),
		Phone:      strings.TrimSpace(a.Phone),
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}

// Encode writes u as a JSON object.
func (u User) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(u.ID)
	e.FieldStart("name")
	e.Str(u.Name)
	e.FieldStart("email")
	e.Str(u.Email)
	e.FieldStart("phone")
	e.Str(u.Phone)
	e.ObjEnd()
}

// Decode reads u from a JSON object. Unknown fields are skipped.
func (u *User) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			u.ID, err = d.Str()
		case "name":
			u.Name, err = d.Str()
		case "email":
			u.Email, err = d.Str()
		case "phone":
			u.Phone, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
}

// Encode writes a as a JSON object.
func (a Address) Encode(e *jx.Encoder) {
	e.ObjStart()
	for _, f := range a.fields() {
		e.FieldStart(f.name)
		e.Str(*f.value)
	}
	e.ObjEnd()
}

// Decode reads a from a JSON object. Unknown fields are skipped.
func (a *Address) Decode(d *jx.Decoder) error {
	fields := a.fields()
	return d.Obj(func(d *jx.Decoder, key string) error {
		for _, f := range fields {
			if f.name != key {
				continue
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrapf(err, "decode %q", key)
			}
			*f.value = v
			return nil
		}
		return d.Skip()
	})
}

type addressField struct {
	name  string
	value *string
}

func (a *Address) fields() []addressField {
	return []addressField{
		{"fullName", &a.FullName},
		{"email", &a.Email},
		{"phone", &a.Phone},
		{"street", &a.Street},
		{"city", &a.City},
		{"postalCode", &a.PostalCode},
	}
}
