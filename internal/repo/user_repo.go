package repo

import (
	"context"
	"errors"
	"fmt"

	dom "UserService/internal/domain"
	"UserService/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserRepo provides user persistence. Implementations return
// dom.ErrNotFound for missing rows and dom.ErrDuplicateUsername when the
// storage-level uniqueness constraint rejects a write.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (dom.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (dom.User, error)
	Create(ctx context.Context, username, passwordHash string) (dom.User, error)
	List(ctx context.Context, limit, offset int) ([]dom.User, error)
	Update(ctx context.Context, id uuid.UUID, patch dom.UserPatch) (dom.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DBTX is the subset of *pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db DBTX
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db DBTX) *PGUserRepo {
	return &PGUserRepo{db: db}
}

const userColumns = `id, username, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (dom.User, error) {
	var u dom.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByUsername returns the user by username.
func (r *PGUserRepo) GetByUsername(ctx context.Context, username string) (dom.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	))
	return u, translate(err)
}

// GetByID returns the user by id.
func (r *PGUserRepo) GetByID(ctx context.Context, id uuid.UUID) (dom.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	return u, translate(err)
}

// Create inserts a new user and returns it. Uniqueness is decided by the
// users_username_key constraint, never by a prior read.
func (r *PGUserRepo) Create(ctx context.Context, username, passwordHash string) (dom.User, error) {
	query := `
		INSERT INTO users (id, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, uuid.New(), username, passwordHash))
	return u, translate(err)
}

// List returns users ordered by creation time.
func (r *PGUserRepo) List(ctx context.Context, limit, offset int) ([]dom.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	list := make([]dom.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, translate(err)
		}
		list = append(list, u)
	}
	return list, translate(rows.Err())
}

// Update applies the non-nil fields of patch.
func (r *PGUserRepo) Update(ctx context.Context, id uuid.UUID, patch dom.UserPatch) (dom.User, error) {
	query := `
		UPDATE users SET
			username = COALESCE($2, username),
			password_hash = COALESCE($3, password_hash),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, id, patch.Username, patch.PasswordHash))
	return u, translate(err)
}

// Delete removes the user.
func (r *PGUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return dom.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return dom.ErrNotFound
	case utils.IsPGUniqueViolation(err):
		return fmt.Errorf("%w: %w", dom.ErrDuplicateUsername, err)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}
