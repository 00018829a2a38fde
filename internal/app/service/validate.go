package service

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// QRCodeForm is the admin submission for creating, updating or deleting a QR code.
type QRCodeForm struct {
	Title            string `json:"title" form:"title" validate:"required"`
	ProductID        string `json:"productId" form:"productId" validate:"required"`
	ProductHandle    string `json:"productHandle" form:"productHandle"`
	ProductVariantID string `json:"productVariantId" form:"productVariantId"`
	Destination      string `json:"destination" form:"destination" validate:"required,oneof=product cart"`
	Action           string `json:"action" form:"action"`
}

// ValidationErrors maps a form field to a human readable message.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "invalid qr code: " + strings.Join(fields, ", ")
}

var fieldMessages = map[string]map[string]string{
	"title":       {"required": "Title is required"},
	"productId":   {"required": "Product is required"},
	"destination": {"required": "Destination is required", "oneof": "Destination must be product or cart"},
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateQRCode returns nil when form is valid, otherwise every failing field.
func ValidateQRCode(form QRCodeForm) ValidationErrors {
	err := formValidator.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{"form": err.Error()}
	}

	result := make(ValidationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := fieldMessages[fe.Field()][fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		result[fe.Field()] = msg
	}
	return result
}
