package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FieldError is one entry of a 422 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var registerOnce sync.Once

// registerJSONFieldNames makes validation errors report JSON field names
// instead of Go struct field names.
func registerJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}

func validationDetail(err error) []FieldError {
	var (
		verrs     validator.ValidationErrors
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &verrs):
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
			if fe.Tag() == "required" {
				msg = "field required"
			}
			out = append(out, FieldError{Field: fe.Field(), Message: msg})
		}
		return out
	case errors.As(err, &typeErr):
		return []FieldError{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
		}}
	case errors.As(err, &syntaxErr):
		return []FieldError{{Field: "body", Message: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}}
	case errors.Is(err, io.EOF):
		return []FieldError{{Field: "body", Message: "request body is empty"}}
	default:
		return []FieldError{{Field: "body", Message: err.Error()}}
	}
}
