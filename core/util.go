package core

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// emailValidate backs IsEmail with the rule of the `email` struct tag.
var emailValidate = validator.New()

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanEmail is the canonical form of an email address used for lookups and storage.
func CleanEmail(email string) string {
	return CleanString(email, true /* lower */)
}

// IsEmail reports whether s passes the `email` validation tag, so CSV cells,
// enrollment requests and user payloads all accept the same addresses.
func IsEmail(s string) bool {
	return emailValidate.Var(s, "email") == nil
}
