package validation

import "strings"

// ContactForm is the contact page submission.
type ContactForm struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"storefront_email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// Normalize trims every field.
func (f *ContactForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Message = strings.TrimSpace(f.Message)
}

var contactMessages = map[string]string{
	"name":    MsgName,
	"email":   MsgEmail,
	"subject": MsgSubject,
	"message": MsgMessage,
}

// Contact checks name, email, subject and message in that order.
func (v *Validator) Contact(form ContactForm) error {
	form.Normalize()
	return firstViolation(v.validate.Struct(form), contactMessages, MsgRequired)
}

// CheckoutForm is the shipping and payment details submitted at checkout.
type CheckoutForm struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Email      string `json:"email" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	Zip        string `json:"zip" validate:"required"`
	CardName   string `json:"cardName" validate:"required"`
	CardNumber string `json:"cardNumber" validate:"required"`
	ExpiryDate string `json:"expiryDate" validate:"required"`
	CVV        string `json:"cvv" validate:"required"`
}

// Normalize trims every field.
func (f *CheckoutForm) Normalize() {
	for _, field := range []*string{
		&f.FirstName, &f.LastName, &f.Email, &f.Phone, &f.Address, &f.City,
		&f.State, &f.Zip, &f.CardName, &f.CardNumber, &f.ExpiryDate, &f.CVV,
	} {
		*field = strings.TrimSpace(*field)
	}
}

type formatRule struct {
	field   string
	tag     string
	message string
	value   func(CheckoutForm) string
}

var checkoutRules = []formatRule{
	{field: "email", tag: "storefront_email", message: MsgEmail, value: func(f CheckoutForm) string { return f.Email }},
	{field: "phone", tag: "storefront_phone", message: MsgPhone, value: func(f CheckoutForm) string { return f.Phone }},
	{field: "cardNumber", tag: "storefront_card", message: MsgCardNumber, value: func(f CheckoutForm) string { return f.CardNumber }},
	{field: "expiryDate", tag: "storefront_expiry", message: MsgExpiry, value: func(f CheckoutForm) string { return f.ExpiryDate }},
	{field: "cvv", tag: "storefront_cvv", message: MsgCVV, value: func(f CheckoutForm) string { return f.CVV }},
}

// Checkout requires every field first, then checks email, phone, card number,
// expiry and CVV in that order.
func (v *Validator) Checkout(form CheckoutForm) error {
	form.Normalize()
	if err := firstViolation(v.validate.Struct(form), nil, MsgRequired); err != nil {
		return err
	}
	for _, rule := range checkoutRules {
		if err := v.validate.Var(rule.value(form), rule.tag); err != nil {
			return &FieldError{Field: rule.field, Message: rule.message}
		}
	}
	return nil
}
