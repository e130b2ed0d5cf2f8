// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldErrors maps a struct field name to the domain error reported when that
// field fails its tags.
type fieldErrors map[string]error

// check runs the struct tags of v and translates the first failure.
func check(v any, domain, op string, mapping fieldErrors) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return shared.WrapError(domain, op, shared.ErrValidation, "invalid command", err)
	}

	fe := verrs[0]
	if mapped, ok := mapping[fe.StructField()]; ok {
		return mapped
	}
	return shared.ValidationError(domain, op, "%s failed %q", fe.Field(), fe.Tag())
}
