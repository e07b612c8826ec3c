package service

import "errors"

// Ошибки провайдеров, используются для классификации в коды callback-ошибок
var (
	ErrProviderNotConfigured     = errors.New("provider is not configured")
	ErrIDTokenVerificationFailed = errors.New("id_token_verification_failed")
	ErrStateMismatch             = errors.New("oauth state is missing or does not match")
	ErrVerificationLinkInvalid   = errors.New("verification link is invalid or expired")
)
