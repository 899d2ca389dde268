package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/repository"
	"xapobank-backend/internal/security"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type authService struct {
	users          repository.UserRepository
	tokens         security.TokenManager
	notifier       *Notifier
	bootstrapEmail string
}

// NewAuthService handles signup, login and token refresh. The bootstrap
// email seeds the first admin account; after that the role column is the
// only authority.
func NewAuthService(users repository.UserRepository, tokens security.TokenManager, notifier *Notifier, bootstrapEmail string) AuthService {
	return &authService{
		users:          users,
		tokens:         tokens,
		notifier:       notifier,
		bootstrapEmail: strings.ToLower(strings.TrimSpace(bootstrapEmail)),
	}
}

func (s *authService) Signup(ctx context.Context, req SignupRequest) (*AuthTokens, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		Country:      strings.TrimSpace(req.Country),
		Role:         domain.RoleUser,
	}
	if s.bootstrapEmail != "" && email == s.bootstrapEmail {
		user.Role = domain.RoleAdmin
		logger.Info("bootstrap admin account created", "email", email)
	}
	if code := strings.ToLower(strings.TrimSpace(req.PromoCode)); code != "" {
		now := time.Now()
		user.PromoCode = code
		user.PromoAppliedAt = &now
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: email already registered", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("user signed up", "user_id", user.ID, "email", email)
	s.notifier.NotifyWelcome(user)
	return s.issueTokens(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	logger.Info("user logged in", "user_id", user.ID)
	return s.issueTokens(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.tokens.ValidateToken(refreshToken)
	if err != nil || claims.Type != security.TokenTypeRefresh {
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return s.issueTokens(user)
}

func (s *authService) GetUser(ctx context.Context, id int32) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) issueTokens(user *domain.User) (*AuthTokens, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Name, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &AuthTokens{AccessToken: access, RefreshToken: refresh, User: user}, nil
}
