package http

import (
	"net/mail"
	"strings"
	"unicode"
)

// fieldErrors accumulates per-field validation messages for 422 bodies.
type fieldErrors map[string]string

func (e fieldErrors) add(field, message string) {
	if _, taken := e[field]; !taken {
		e[field] = message
	}
}

func (e fieldErrors) ok() bool { return len(e) == 0 }

func validateEmail(errs fieldErrors, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.add("email", "is required")
		return
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs.add("email", "is not a valid address")
	}
}

func validateName(errs fieldErrors, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		errs.add("name", "is required")
		return
	}
	if len(name) > 120 {
		errs.add("name", "must be at most 120 characters")
	}
}

// validatePassword enforces the registration password policy: at least
// eight characters with upper, lower, digit and symbol classes present.
func validatePassword(errs fieldErrors, field, password string) {
	if password == "" {
		errs.add(field, "is required")
		return
	}
	if len(password) < 8 {
		errs.add(field, "must be at least 8 characters")
		return
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		errs.add(field, "must mix upper and lower case letters, digits and symbols")
	}
}
