package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"chatgo/internal/domain"
	"chatgo/internal/security"
)

// AuthService is the thin identity collaborator: register/login issuing
// bearer tokens. Everything downstream receives the resolved user
// explicitly.
type AuthService struct {
	users  domain.UserRepository
	tokens *security.TokenService
	hasher *security.PasswordHasher
}

func NewAuthService(
	users domain.UserRepository,
	tokens *security.TokenService,
	hasher *security.PasswordHasher,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
	}
}

type RegisterInput struct {
	Username string
	Name     string
	Password string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = username
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Username:       username,
		Name:           name,
		ShareID:        uuid.NewString(),
		HashedPassword: hashed,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login verifies credentials and returns a bearer token plus the user.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return "", nil, domain.ErrUnauthorized
	}
	if err := s.hasher.Verify(password, u.HashedPassword); err != nil {
		return "", nil, domain.ErrUnauthorized
	}

	token, err := s.tokens.CreateForUser(u.Username)
	if err != nil {
		return "", nil, fmt.Errorf("create token: %w", err)
	}
	return token, u, nil
}
