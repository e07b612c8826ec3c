package signin

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MsgEmailRequired = "Write your email please"
	MsgEmailInvalid  = "Invalid email address"
)

var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,4}$`)

// EmailValidator checks the sign-in email field with the "signin_email" tag.
type EmailValidator struct {
	validate *validator.Validate
}

func NewEmailValidator() *EmailValidator {
	v := validator.New()
	_ = v.RegisterValidation("signin_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return &EmailValidator{validate: v}
}

// RegisterSigninEmail adds the "signin_email" tag to an existing validator, such as gin's binding engine.
func RegisterSigninEmail(v *validator.Validate) error {
	return v.RegisterValidation("signin_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
}

// Validate returns the field message, or "" when email is acceptable.
func (v *EmailValidator) Validate(email string) string {
	err := v.validate.Var(strings.TrimSpace(email), "required,signin_email")
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
		return MsgEmailRequired
	}
	return MsgEmailInvalid
}
