package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись, сессия или токен не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется, когда у запроса нет действующей сессии.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда сессия есть, но доступ к странице запрещен.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных (например, email).
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken используется, когда токен ссылки входа или сессия истекли.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict используется для конфликтов состояния (email уже занят, повторная отправка формы).
	ErrConflict = errors.New("resource state conflict")
)
