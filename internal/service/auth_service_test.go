package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chatgo/internal/domain"
	"chatgo/internal/security"
	"chatgo/internal/service"
)

func TestRegister(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests

	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		users.On("GetByUsername", mock.Anything, "newuser").Return(nil, nil)
		users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "newuser" && u.ShareID != "" && u.HashedPassword != "password1"
		})).Return(nil)

		svc := service.NewAuthService(users, tokenSvc, hasher)
		user, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "newuser",
			Password: "password1",
		})

		assert.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, "newuser", user.Username)
		// name defaults to the username when omitted
		assert.Equal(t, "newuser", user.Name)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		users := new(MockUserRepo)
		users.On("GetByUsername", mock.Anything, "existing").Return(&domain.User{Username: "existing"}, nil)

		svc := service.NewAuthService(users, tokenSvc, hasher)
		user, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "existing",
			Password: "password1",
		})

		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Nil(t, user)
	})

	t.Run("ShortPasswordRejected", func(t *testing.T) {
		users := new(MockUserRepo)

		svc := service.NewAuthService(users, tokenSvc, hasher)
		_, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "newuser",
			Password: "short",
		})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4)

	hashed, err := hasher.Hash("password1")
	if err != nil {
		t.Fatal(err)
	}
	existing := &domain.User{ID: 1, Username: "alice", HashedPassword: hashed}

	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		users.On("GetByUsername", mock.Anything, "alice").Return(existing, nil)

		svc := service.NewAuthService(users, tokenSvc, hasher)
		token, user, err := svc.Login(context.Background(), "alice", "password1")

		assert.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, existing, user)

		sub, err := tokenSvc.Subject(token)
		assert.NoError(t, err)
		assert.Equal(t, "alice", sub)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		users := new(MockUserRepo)
		users.On("GetByUsername", mock.Anything, "alice").Return(existing, nil)

		svc := service.NewAuthService(users, tokenSvc, hasher)
		token, user, err := svc.Login(context.Background(), "alice", "wrong")

		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.Empty(t, token)
		assert.Nil(t, user)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		users := new(MockUserRepo)
		users.On("GetByUsername", mock.Anything, "ghost").Return(nil, nil)

		svc := service.NewAuthService(users, tokenSvc, hasher)
		_, _, err := svc.Login(context.Background(), "ghost", "password1")

		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
