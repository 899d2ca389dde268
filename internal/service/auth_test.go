package service

import (
	"context"
	"testing"

	"xapobank-backend/internal/repository"
	"xapobank-backend/internal/security"

	"xapobank-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeTokens issues fixed token strings and replays canned claims.
type fakeTokens struct {
	claims *security.UserClaims
	err    error
}

func (f fakeTokens) GenerateAccessToken(int32, string, string, string) (string, error) {
	return "access-token", nil
}
func (f fakeTokens) GenerateRefreshToken(int32, string) (string, error) {
	return "refresh-token", nil
}
func (f fakeTokens) VerifyCredential(string) *security.Identity { return nil }
func (f fakeTokens) ValidateToken(string) (*security.UserClaims, error) {
	return f.claims, f.err
}

func newTestAuth(users *MockUserRepo, tokens security.TokenManager, bootstrapEmail string) AuthService {
	return NewAuthService(users, tokens, NewNotifier(fakeEmail{}), bootstrapEmail)
}

func TestSignupValidation(t *testing.T) {
	svc := newTestAuth(new(MockUserRepo), fakeTokens{}, "")
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupRequest{Email: "not-an-email", Password: "password123", Name: "A"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Signup(ctx, SignupRequest{Email: "a@example.com", Password: "short", Name: "A"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Signup(ctx, SignupRequest{Email: "a@example.com", Password: "password123", Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSignupSuccess(t *testing.T) {
	users := new(MockUserRepo)
	svc := newTestAuth(users, fakeTokens{}, "")

	users.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = 5
	}).Return(nil)

	tokens, err := svc.Signup(context.Background(), SignupRequest{
		Email:     "  New@Example.COM ",
		Password:  "password123",
		Name:      "New User",
		PromoCode: " WELCOME ",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-token", tokens.AccessToken)
	assert.Equal(t, "refresh-token", tokens.RefreshToken)
	assert.Equal(t, int32(5), tokens.User.ID)
	assert.Equal(t, "new@example.com", tokens.User.Email)
	assert.Equal(t, domain.RoleUser, tokens.User.Role)
	assert.Equal(t, "welcome", tokens.User.PromoCode)
	assert.NotNil(t, tokens.User.PromoAppliedAt)
	assert.NotEmpty(t, tokens.User.PasswordHash)
	assert.NotEqual(t, "password123", tokens.User.PasswordHash)
}

func TestSignupBootstrapAdmin(t *testing.T) {
	users := new(MockUserRepo)
	svc := newTestAuth(users, fakeTokens{}, "Admin@Example.com")
	users.On("Create", mock.Anything, mock.Anything).Return(nil)

	tokens, err := svc.Signup(context.Background(), SignupRequest{
		Email:    "admin@example.com",
		Password: "password123",
		Name:     "Admin",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, tokens.User.Role)
}

func TestSignupDuplicateEmail(t *testing.T) {
	users := new(MockUserRepo)
	svc := newTestAuth(users, fakeTokens{}, "")
	users.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEmail)

	_, err := svc.Signup(context.Background(), SignupRequest{
		Email:    "taken@example.com",
		Password: "password123",
		Name:     "Dup",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{ID: 1, Email: "u@example.com", PasswordHash: string(hash)}

	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		users.On("GetByEmail", mock.Anything, "u@example.com").Return(user, nil)
		svc := newTestAuth(users, fakeTokens{}, "")

		tokens, err := svc.Login(context.Background(), "u@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, int32(1), tokens.User.ID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		users := new(MockUserRepo)
		users.On("GetByEmail", mock.Anything, "u@example.com").Return(user, nil)
		svc := newTestAuth(users, fakeTokens{}, "")

		_, err := svc.Login(context.Background(), "u@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		users := new(MockUserRepo)
		users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)
		svc := newTestAuth(users, fakeTokens{}, "")

		// Unknown email and bad password are indistinguishable to the caller.
		_, err := svc.Login(context.Background(), "ghost@example.com", "password123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestRefresh(t *testing.T) {
	user := &domain.User{ID: 7, Email: "u@example.com"}

	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		users.On("GetByID", mock.Anything, int32(7)).Return(user, nil)
		svc := newTestAuth(users, fakeTokens{claims: &security.UserClaims{
			UserID: 7,
			Type:   security.TokenTypeRefresh,
		}}, "")

		tokens, err := svc.Refresh(context.Background(), "some-refresh-token")
		require.NoError(t, err)
		assert.Equal(t, int32(7), tokens.User.ID)
	})

	t.Run("AccessTokenRejected", func(t *testing.T) {
		svc := newTestAuth(new(MockUserRepo), fakeTokens{claims: &security.UserClaims{
			UserID: 7,
			Type:   security.TokenTypeAccess,
		}}, "")

		_, err := svc.Refresh(context.Background(), "an-access-token")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		svc := newTestAuth(new(MockUserRepo), fakeTokens{err: security.ErrInvalidToken}, "")

		_, err := svc.Refresh(context.Background(), "garbage")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}
