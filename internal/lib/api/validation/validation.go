// Package validation builds the request validator shared by all handlers.
package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// fepathRe accepts frontend route fragments only, so a mailed link can never
// point outside the configured site.
var fepathRe = regexp.MustCompile(`^[a-zA-Z0-9_\-/]+$`)

func New() *validator.Validate {
	validate := validator.New()

	// Registration only fails for an empty tag or a nil func.
	_ = validate.RegisterValidation("fepath", func(fl validator.FieldLevel) bool {
		return fepathRe.MatchString(fl.Field().String())
	})

	return validate
}
