package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationErrorKind classifies why a request body was rejected.
type ValidationErrorKind int

const (
	KindRequired ValidationErrorKind = iota
	KindMin
	KindMax
	KindType
	KindUnknown
)

// Status returns the HTTP status reported for the kind.
func (k ValidationErrorKind) Status() int {
	if k == KindMin || k == KindMax {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

// ValidationError is the first violation found in a request body.
type ValidationError struct {
	Kind    ValidationErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// productRequest is the body of product create and update requests.
type productRequest struct {
	Name     *string `json:"name" validate:"required,min=5"`
	Quantity *int32  `json:"quantity" validate:"required,min=1,max=1000000000"`
}

type saleItemRequest struct {
	ProductID *int64 `json:"productId" validate:"required,min=1"`
	Quantity  *int32 `json:"quantity" validate:"required,min=1,max=1000000000"`
}

var errMalformedBody = errors.New("malformed request body")

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody decodes a single JSON value into dst, rejecting unknown fields and trailing data.
// An empty body leaves dst untouched. Type mismatches and unknown fields come back as *ValidationError.
func decodeBody(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil {
		if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: trailing data after JSON value", errMalformedBody)
		}
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return &ValidationError{Kind: KindType, Message: typeMessage(typeErr)}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return &ValidationError{Kind: KindUnknown, Message: fmt.Sprintf("%q is not allowed", field)}
	case errors.Is(err, io.EOF):
		return nil
	default:
		return fmt.Errorf("%w: %w", errMalformedBody, err)
	}
}

func typeMessage(typeErr *json.UnmarshalTypeError) string {
	field := typeErr.Field
	if i := strings.LastIndex(field, "."); i >= 0 {
		field = field[i+1:]
	}
	if field == "" {
		field = "value"
	}
	switch typeErr.Type.Kind() {
	case reflect.String:
		return fmt.Sprintf("%q must be a string", field)
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("%q must be an array", field)
	case reflect.Struct, reflect.Map:
		return fmt.Sprintf("%q must be of type object", field)
	default:
		return fmt.Sprintf("%q must be a number", field)
	}
}

// firstViolation validates s and converts the first failing rule into a *ValidationError.
func firstViolation(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Kind: KindRequired, Message: fmt.Sprintf("%q is required", fe.Field())}
	case "min":
		if fe.Kind() == reflect.String {
			return &ValidationError{Kind: KindMin,
				Message: fmt.Sprintf("%q length must be at least %s characters long", fe.Field(), fe.Param())}
		}
		return &ValidationError{Kind: KindMin,
			Message: fmt.Sprintf("%q must be greater than or equal to %s", fe.Field(), fe.Param())}
	case "max":
		return &ValidationError{Kind: KindMax,
			Message: fmt.Sprintf("%q must be less than or equal to %s", fe.Field(), fe.Param())}
	default:
		return &ValidationError{Kind: KindType, Message: fmt.Sprintf("%q is invalid", fe.Field())}
	}
}

func (h *Handler) decodeProduct(r *http.Request) (productRequest, error) {
	var req productRequest
	if err := decodeBody(r.Body, &req); err != nil {
		return req, err
	}
	return req, firstViolation(h.validate, req)
}

func (h *Handler) decodeSaleItems(r *http.Request) ([]saleItemRequest, error) {
	var req []saleItemRequest
	if err := decodeBody(r.Body, &req); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &ValidationError{Kind: KindType, Message: `"value" must be an array`}
	}
	for _, item := range req {
		if err := firstViolation(h.validate, item); err != nil {
			return nil, err
		}
	}
	return req, nil
}
