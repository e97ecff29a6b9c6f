package booking

import (
	"errors"
	"regexp"
	"strings"

	"cinema-booking-cli/model"
	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

var validate = mustValidator()

func mustValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic("booking: register phone validation: " + err.Error())
	}
	return v
}

// Checkout is the local payer form. Updating it never touches the network.
type Checkout struct {
	Payer  model.PayerInfo
	Method model.PaymentMethod
}

// NewCheckout returns an empty form paying in cash.
func NewCheckout() Checkout {
	return Checkout{Method: model.PaymentCash}
}

func (c Checkout) UpdatePayerInfo(name, phone, email string) Checkout {
	c.Payer = model.PayerInfo{
		Name:  strings.TrimSpace(name),
		Phone: normalizePhone(phone),
		Email: strings.TrimSpace(email),
	}
	return c
}

func (c Checkout) UpdatePaymentMethod(method model.PaymentMethod) Checkout {
	c.Method = model.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(method))))
	return c
}

// Validate returns a Validation error naming every invalid field.
func (c Checkout) Validate() error {
	var problems []string
	if err := validate.Struct(c.Payer); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return &Error{Kind: KindValidation, Message: "invalid payer info", Err: err}
		}
		for _, fieldErr := range fieldErrs {
			problems = append(problems, fieldMessage(fieldErr))
		}
	}
	if !knownPaymentMethod(c.Method) {
		problems = append(problems, "choose a payment method")
	}
	if len(problems) > 0 {
		return newError(KindValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (c Checkout) Valid() bool {
	return c.Validate() == nil
}

func fieldMessage(err validator.FieldError) string {
	switch err.Field() {
	case "Name":
		return "name is required"
	case "Phone":
		if err.Tag() == "required" {
			return "phone is required"
		}
		return "phone must be 8 to 15 digits"
	case "Email":
		return "email is not valid"
	default:
		return strings.ToLower(err.Field()) + " is not valid"
	}
}

func knownPaymentMethod(method model.PaymentMethod) bool {
	for _, known := range model.PaymentMethods {
		if method == known {
			return true
		}
	}
	return false
}

// normalizePhone drops the spaces, dots and dashes people type into numbers.
func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}
