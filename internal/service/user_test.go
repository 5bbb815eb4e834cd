package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func userOrNil(args mock.Arguments) (*domain.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return userOrNil(m.Called(ctx, id))
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return userOrNil(m.Called(ctx, email))
}

func (m *mockUserRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

type stubTokens struct {
	err error
}

func (s stubTokens) Generate(userID string, _ []string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-for-" + userID, nil
}

func newTestUserService(repo *mockUserRepository) *UserService {
	svc := NewUserService(repo, stubTokens{}, newTestLogger())
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRegister_Success(t *testing.T) {
	repo := &mockUserRepository{}
	svc := newTestUserService(repo)
	ctx := context.Background()

	var stored *domain.User
	repo.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.User) }).
		Return(nil)

	u, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "  Ada@Example.COM ", Password: "password1"})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, []string{domain.RoleUser}, u.Roles)
	assert.NotEqual(t, "password1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password1")))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &mockUserRepository{}
	svc := newTestUserService(repo)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(apperrors.Conflict("email already taken"))

	_, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password1"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestUserService(&mockUserRepository{})
	ctx := context.Background()

	for _, in := range []RegisterInput{
		{Name: "", Email: "a@b.c", Password: "password1"},
		{Name: "A", Email: " ", Password: "password1"},
		{Name: "A", Email: "a@b.c", Password: "short"},
	} {
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

func TestLogin_Success(t *testing.T) {
	repo := &mockUserRepository{}
	svc := newTestUserService(repo)
	ctx := context.Background()

	user := &domain.User{ID: "u1", Email: "ada@example.com", PasswordHash: hashed(t, "password1"), Roles: []string{domain.RoleUser}}
	repo.On("GetByEmail", ctx, "ada@example.com").Return(user, nil)

	res, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "token-for-u1", res.Token)
	assert.Equal(t, user, res.User)
}

func TestLogin_BadCredentials(t *testing.T) {
	repo := &mockUserRepository{}
	svc := newTestUserService(repo)
	ctx := context.Background()

	user := &domain.User{ID: "u1", PasswordHash: hashed(t, "password1")}
	repo.On("GetByEmail", ctx, "ada@example.com").Return(user, nil)
	repo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, apperrors.NotFound("user", "nobody@example.com"))

	_, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password1"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_StoreFailureIsNotUnauthorized(t *testing.T) {
	repo := &mockUserRepository{}
	svc := newTestUserService(repo)
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "ada@example.com").Return(nil, errors.New("db down"))

	_, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "password1"})
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestLogin_TokenFailure(t *testing.T) {
	repo := &mockUserRepository{}
	svc := NewUserService(repo, stubTokens{err: errors.New("no key")}, newTestLogger())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "ada@example.com").Return(&domain.User{ID: "u1", PasswordHash: hashed(t, "password1")}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "password1"})
	assert.ErrorContains(t, err, "generate token")
}

func TestSeedAdmin_CreatesOnce(t *testing.T) {
	repo := &mockUserRepository{}
	svc := newTestUserService(repo)
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "admin@example.com").Return(nil, apperrors.NotFound("user", "admin@example.com")).Once()
	repo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.HasRole(domain.RoleAdmin) && u.Email == "admin@example.com"
	})).Return(nil).Once()

	require.NoError(t, svc.SeedAdmin(ctx, "Admin", "admin@example.com", "admin-password"))

	repo.On("GetByEmail", ctx, "admin@example.com").Return(&domain.User{ID: "a1", Roles: []string{domain.RoleAdmin}}, nil).Once()
	require.NoError(t, svc.SeedAdmin(ctx, "Admin", "admin@example.com", "admin-password"))

	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestSeedAdmin_LookupFailure(t *testing.T) {
	repo := &mockUserRepository{}
	svc := newTestUserService(repo)
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "admin@example.com").Return(nil, errors.New("db down"))

	assert.Error(t, svc.SeedAdmin(ctx, "Admin", "admin@example.com", "admin-password"))
}

func TestListUsers(t *testing.T) {
	repo := &mockUserRepository{}
	svc := newTestUserService(repo)
	repo.On("List", mock.Anything).Return(nil, nil)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.User{}, users)
}
