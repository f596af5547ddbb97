// Package validation checks the contact and checkout forms. Each check reports
// only the first violation, with the message shown to the shopper.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Shopper facing messages.
const (
	MsgName          = "Please enter your name"
	MsgEmail         = "Please enter a valid email address"
	MsgSubject       = "Please enter a subject"
	MsgMessage       = "Please enter your message"
	MsgRequired      = "Please fill in all required fields"
	MsgPhone         = "Please enter a valid phone number"
	MsgCardNumber    = "Please enter a valid card number"
	MsgExpiry        = "Please enter a valid expiry date (MM/YY) that is not expired"
	MsgCVV           = "Please enter a valid CVV (3 or 4 digits)"
	MsgContactThanks = "Thank you for your message! We will get back to you soon."
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern  = regexp.MustCompile(`^\(?([0-9]{3})\)?[-. ]?([0-9]{3})[-. ]?([0-9]{4})$`)
	cardPattern   = regexp.MustCompile(`^[0-9]{13,19}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/?([0-9]{2})$`)
	cvvPattern    = regexp.MustCompile(`^[0-9]{3,4}$`)
	whitespace    = regexp.MustCompile(`\s`)
)

// FieldError names the offending field and carries the message to display.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// AsFieldError unwraps a *FieldError from err.
func AsFieldError(err error) (*FieldError, bool) {
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr, true
	}
	return nil, false
}

// Validator runs the form checks. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// New constructs a Validator. clock decides whether a card expiry lies in the
// future and defaults to time.Now.
func New(clock func() time.Time) *Validator {
	if clock == nil {
		clock = time.Now
	}
	v := &Validator{validate: validator.New(), now: clock}

	v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	mustRegister(v.validate, "storefront_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	mustRegister(v.validate, "storefront_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(v.validate, "storefront_card", func(fl validator.FieldLevel) bool {
		return cardPattern.MatchString(whitespace.ReplaceAllString(fl.Field().String(), ""))
	})
	mustRegister(v.validate, "storefront_expiry", func(fl validator.FieldLevel) bool {
		return v.expiryInFuture(fl.Field().String())
	})
	mustRegister(v.validate, "storefront_cvv", func(fl validator.FieldLevel) bool {
		return cvvPattern.MatchString(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// expiryInFuture accepts MM/YY or MMYY and requires the first day of that
// month to be after now.
func (v *Validator) expiryInFuture(value string) bool {
	match := expiryPattern.FindStringSubmatch(value)
	if match == nil {
		return false
	}
	month, _ := strconv.Atoi(match[1])
	year, _ := strconv.Atoi(match[2])
	now := v.now()
	start := time.Date(2000+year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
	return start.After(now)
}

// firstViolation maps the first failing field of a validator run to a FieldError.
func firstViolation(err error, messages map[string]string, fallback string) error {
	if err == nil {
		return nil
	}
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) || len(violations) == 0 {
		return err
	}
	field := violations[0].Field()
	message, ok := messages[field]
	if !ok {
		message = fallback
	}
	return &FieldError{Field: field, Message: message}
}
