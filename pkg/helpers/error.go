// Package helpers carries the ambient, cross-cutting concerns every
// component in this repository shares: a typed error envelope and struct
// validation.
package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is a typed error envelope carried across the whole command surface.
// Title is one of the fixed error codes returned to callers; Err carries
// optional structured detail.
type Error struct {
	Title string `json:"title"`
	Err   any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %+v", e.Title, e.Err)
	}
	return e.Title
}

// NewError builds an *Error with no detail.
func NewError(title string) *Error {
	return &Error{Title: title}
}

// NewErrorDetails builds an *Error carrying structured detail.
func NewErrorDetails(title string, detail any) *Error {
	return &Error{Title: title, Err: detail}
}

// NewErrorFromError wraps a generic error as an *Error, preserving an
// already-typed *Error and giving validator/json errors a stable shape.
func NewErrorFromError(err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	var unmarshalErr *json.UnmarshalTypeError
	if errors.As(err, &unmarshalErr) {
		return &Error{Title: "json_type_error", Err: map[string]any{
			"field":    unmarshalErr.Field,
			"expected": unmarshalErr.Type.Kind().String(),
		}}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &Error{Title: "json_syntax_error", Err: map[string]any{"offset": syntaxErr.Offset}}
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return &Error{Title: "CommonInvalidStructure", Err: formatValidationErrors(validationErrs)}
	}

	return NewErrorDetails("internal_error", err.Error())
}

func formatValidationErrors(errs validator.ValidationErrors) []map[string]any {
	v := make([]map[string]any, 0, len(errs))
	for _, e := range errs {
		field := e.Namespace()
		if idx := strings.IndexRune(field, '.'); idx >= 0 {
			field = field[idx+1:]
		}
		v = append(v, map[string]any{
			"field":      field,
			"tag":        e.Tag(),
			"param":      e.Param(),
			"value":      e.Value(),
			"structName": e.StructNamespace(),
		})
	}
	return v
}

// Sentinel errors for the fixed set of error codes this API returns.
// Callers compare with errors.Is; HTTP/CLI surfaces map these to response
// codes.
var (
	ErrInvalidStructure           = NewError("CommonInvalidStructure")
	ErrInvalidParam               = NewError("CommonInvalidParam")
	ErrMasterSecretDuplicate      = NewError("AnoncredsMasterSecretDuplicateNameError")
	ErrMasterSecretNotFound       = NewError("WalletItemNotFound")
	ErrCredentialNotFound         = NewError("WalletItemNotFound")
	ErrCredentialDuplicate        = NewError("WalletItemAlreadyExists")
	ErrProofRejected              = NewError("AnoncredsProofRejected")
	ErrInvalidUserRevocID         = NewError("AnoncredsInvalidUserRevocId")
	ErrCredentialRevoked          = NewError("AnoncredsCredentialRevoked")
	ErrRevocationRegistryNotFound = NewError("WalletItemNotFound")
	ErrRevocationRegistryFull     = NewError("AnoncredsRevocationRegistryFullError")
	ErrCredDefAlreadyExists       = NewError("AnoncredsCredDefAlreadyExistsError")
	ErrInvalidHandle              = NewError("CommonInvalidParam2")
	ErrDuplicateID                = NewError("WalletItemAlreadyExists")
	ErrUrsa                       = NewError("AnoncredsError")
)

// NewValidator builds a struct validator that reports field names using the
// json tag rather than the Go field name.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// CheckSimple validates s and wraps any failure as a CommonInvalidStructure
// *Error.
func CheckSimple(s any) error {
	if err := NewValidator().Struct(s); err != nil {
		return NewErrorFromError(err)
	}
	return nil
}
