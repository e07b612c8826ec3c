package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
	"github.com/yoshi-pos/pos-web/internal/signin"
)

func TestUserService_GetProfile(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewUserService(repo, nil)

	repo.On("GetByID", uint(1)).Return(&entity.User{ID: 1, Email: "a@shop.com"}, nil)
	repo.On("GetByID", uint(2)).Return(nil, apperrors.ErrNotFound)
	repo.On("GetByID", uint(3)).Return(nil, errors.New("conn reset"))

	user, err := svc.GetProfile(1)
	require.NoError(t, err)
	assert.Equal(t, "a@shop.com", user.Email)

	_, err = svc.GetProfile(2)
	requireAppCode(t, err, signin.CodeUnauthorized)

	_, err = svc.GetProfile(3)
	requireAppCode(t, err, signin.CodeDatabaseError)
}

func TestUserService_UpdateName(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewUserService(repo, nil)

	repo.On("UpdateProfile", uint(1), map[string]interface{}{"name": "Corner Cafe"}).Return(nil).Once()
	require.NoError(t, svc.UpdateName(1, "  Corner Cafe "))

	err := svc.UpdateName(1, "   ")
	requireAppCode(t, err, InvalidNameError)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = svc.UpdateName(1, strings.Repeat("x", 101))
	requireAppCode(t, err, InvalidNameError)

	repo.On("UpdateProfile", uint(1), map[string]interface{}{"name": strings.Repeat("店", 100)}).Return(nil).Once()
	require.NoError(t, svc.UpdateName(1, strings.Repeat("店", 100)))

	repo.On("UpdateProfile", uint(2), mock.Anything).Return(errors.New("deadlock"))
	err = svc.UpdateName(2, "Cafe")
	requireAppCode(t, err, signin.CodeUpdateUserError)

	repo.AssertExpectations(t)
}

func TestUserService_UpdateName_MessageReachesToast(t *testing.T) {
	svc := NewUserService(new(MockUserRepository), nil)

	_, ec := signin.Classify(svc.UpdateName(1, ""))
	require.NotNil(t, ec)
	assert.Equal(t, InvalidNameError, ec.ErrorName)

	msg, ok := signin.Resolve(ec)
	require.True(t, ok)
	assert.Equal(t, "Please enter a name between 1 and 100 characters.", msg)
}
