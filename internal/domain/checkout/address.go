package checkout

import (
	"regexp"

	"github.com/go-faster/errors"
	"github.com/ogen-go/ogen/validate"

	"github.com/xenking/acidic-storefront/internal/domain/user"
)

var (
	errRequired      = errors.New("required")
	errInvalidEmail  = errors.New("invalid email address")
	errInvalidPostal = errors.New("postal code must be 4 to 10 digits")
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	postalPattern = regexp.MustCompile(`^\d{4,10}$`)
)

// ValidateAddress checks every field of a and reports all failures at once.
func ValidateAddress(a user.Address) error {
	a = a.Normalize()

	var fields []validate.FieldError
	required := []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"email", a.Email},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"postalCode", a.PostalCode},
	}
	for _, f := range required {
		if f.value == "" {
			fields = append(fields, validate.FieldError{Name: f.name, Error: errRequired})
		}
	}
	if a.Email != "" && !emailPattern.MatchString(a.Email) {
		fields = append(fields, validate.FieldError{Name: "email", Error: errInvalidEmail})
	}
	if a.PostalCode != "" && !postalPattern.MatchString(a.PostalCode) {
		fields = append(fields, validate.FieldError{Name: "postalCode", Error: errInvalidPostal})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
