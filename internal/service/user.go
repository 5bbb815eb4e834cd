package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
)

const minPasswordLength = 8

// UserService handles registration, login and the admin user list.
type UserService struct {
	repo       repository.UserRepository
	tokens     TokenIssuer
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
}

// NewUserService creates a user service hashing with bcrypt.DefaultCost.
func NewUserService(repo repository.UserRepository, tokens TokenIssuer, logger *slog.Logger) *UserService {
	return &UserService{
		repo:       repo,
		tokens:     tokens,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is a signed access token and the user it was issued to.
type LoginResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Register creates an account with the user role. Emails are unique
// regardless of case.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	return s.create(ctx, input, []string{domain.RoleUser})
}

func (s *UserService) create(ctx context.Context, input RegisterInput, roles []string) (*domain.User, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Login checks credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if input.Email == "" || input.Password == "" {
		return nil, apperrors.InvalidInput("email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &LoginResult{Token: token, User: user}, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// SeedAdmin creates the admin account unless a user with that email
// already exists.
func (s *UserService) SeedAdmin(ctx context.Context, name, email, password string) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.HasRole(domain.RoleAdmin) {
			s.logger.WarnContext(ctx, "admin seed email belongs to a non-admin user", slog.String("user_id", existing.ID))
		}
		return nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("look up admin: %w", err)
	}

	if name == "" {
		name = "Admin"
	}
	user, err := s.create(ctx, RegisterInput{Name: name, Email: email, Password: password}, []string{domain.RoleUser, domain.RoleAdmin})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil
		}
		return fmt.Errorf("seed admin: %w", err)
	}

	s.logger.InfoContext(ctx, "admin account created", slog.String("user_id", user.ID))
	return nil
}
