package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validatorv10.Validate {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bindJSON decodes the body into out and runs struct validation. Numbers
// decode as json.Number so money values keep their exact text. The returned
// error is safe to show to clients.
func bindJSON(r *http.Request, out any) error {
	if err := decodeJSON(r, out); err != nil {
		return err
	}
	if err := validate.Struct(out); err != nil {
		return validationMessage(err)
	}
	return nil
}

// decodeJSON decodes without struct validation, for free-form bodies.
func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func validationMessage(err error) error {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return errors.New("invalid request body")
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email")
		case "uuid":
			msgs = append(msgs, fe.Field()+" must be a valid UUID")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must contain at least %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
