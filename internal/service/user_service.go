package service

import (
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	"github.com/yoshi-pos/pos-web/internal/domain/repository"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
	"github.com/yoshi-pos/pos-web/internal/signin"
)

const maxNameLength = 100

// InvalidNameError не входит в таблицу сообщений, поэтому показывается текст ошибки
const InvalidNameError = "InvalidNameError"

// UserService предоставляет методы для работы с профилем сотрудника
type UserService struct {
	userRepo repository.UserRepository
	log      *zap.Logger
}

// NewUserService создает новый сервис пользователей
func NewUserService(userRepo repository.UserRepository, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{userRepo: userRepo, log: log.Named("UserService")}
}

// GetProfile возвращает пользователя сессии. Удаленный пользователь: Unauthorized.
func (s *UserService) GetProfile(userID uint) (*entity.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, signin.NewAppError(signin.CodeUnauthorized, err)
		}
		return nil, signin.NewAppError(signin.CodeDatabaseError, err)
	}
	return user, nil
}

// UpdateName задает отображаемое имя на шаге онбординга Account
func (s *UserService) UpdateName(userID uint, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return signin.NewAppErrorWithMessage(InvalidNameError,
			"Please enter a name between 1 and 100 characters.", apperrors.ErrValidation)
	}
	if err := s.userRepo.UpdateProfile(userID, map[string]interface{}{"name": name}); err != nil {
		s.log.Warn("failed to update user name", zap.Uint("user_id", userID), zap.Error(err))
		return signin.NewAppError(signin.CodeUpdateUserError, err)
	}
	return nil
}
