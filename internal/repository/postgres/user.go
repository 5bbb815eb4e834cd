package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/pkg/database"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
)

const userColumns = `id, name, email, password_hash, roles, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

var _ repository.UserRepository = (*UserRepository)(nil)

// Create inserts a user. The email is stored lowercase.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	u.Email = strings.ToLower(u.Email)
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	ctx, end := traceQuery(ctx, "users.create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash, u.Roles, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Conflict("email already taken")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryOne(ctx, "users.get", query, id)
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return r.queryOne(ctx, "users.get_by_email", query, email)
}

// GetByIDs returns every user whose id is in ids.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	return r.queryMany(ctx, "users.get_many", query, ids)
}

// List returns all users, oldest first.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, id ASC`
	return r.queryMany(ctx, "users.list", query)
}

func (r *UserRepository) queryOne(ctx context.Context, operation, query, key string) (_ *domain.User, err error) {
	ctx, end := traceQuery(ctx, operation, query)
	defer func() { end(err) }()

	u, err := scanUser(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", key)
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return u, nil
}

func (r *UserRepository) queryMany(ctx context.Context, operation, query string, args ...any) (_ []domain.User, err error) {
	ctx, end := traceQuery(ctx, operation, query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
