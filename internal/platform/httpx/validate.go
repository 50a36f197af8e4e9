package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Validator decodes request bodies and checks their struct tags.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator.
func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Decode reads JSON into target and validates it. On failure it writes the
// problem response and returns false.
func (v *Validator) Decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := DecodeJSON(r, target); err != nil {
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	if err := v.v.Struct(target); err != nil {
		fields := make(map[string]any)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		ProblemWithCode(w, http.StatusBadRequest, "Validation Failed", "invalid_request", err.Error(), fields)
		return false
	}
	return true
}
