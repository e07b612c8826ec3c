package signin

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailValidator(t *testing.T) {
	v := NewEmailValidator()

	tests := []struct {
		email string
		want  string
	}{
		{"", MsgEmailRequired},
		{"   ", MsgEmailRequired},
		{"owner@yoshi.example", MsgEmailInvalid}, // TLD longer than 4 letters
		{"owner@yoshi.com", ""},
		{"Owner.Name+pos@Shop.Co.JP", ""},
		{"owner@localhost", MsgEmailInvalid},
		{"owner@yoshi.c", MsgEmailInvalid},
		{"owner@yoshi.c0m", MsgEmailInvalid},
		{"no-at-sign.com", MsgEmailInvalid},
		{"a b@yoshi.com", MsgEmailInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Validate(tt.email))
		})
	}
}

func TestRegisterSigninEmail(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterSigninEmail(v))

	type form struct {
		Email string `validate:"required,signin_email"`
	}
	assert.NoError(t, v.Struct(form{Email: "staff@shop.jp"}))
	assert.Error(t, v.Struct(form{Email: "staff@shop"}))
}
