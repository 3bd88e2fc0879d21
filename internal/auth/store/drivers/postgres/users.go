package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aussiebroadwan/taskdeck/internal/auth/domain"
)

const userColumns = `id, email, username, password_hash, task_view, created_at, updated_at`

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

const createUser = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

type usersRepo struct {
	pool *pgxpool.Pool
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, getUserByID, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, getUserByEmail, email)
}

func (r *usersRepo) getOne(ctx context.Context, query, arg string) (domain.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return domain.User{}, err
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func scanUser(row pgx.CollectableRow) (domain.User, error) {
	var (
		u        domain.User
		username pgtype.Text
	)
	err := row.Scan(&u.ID, &u.Email, &username, &u.PasswordHash, &u.TaskView, &u.CreatedAt, &u.UpdatedAt)
	u.Username = username.String
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, err
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	if u.TaskView == "" {
		u.TaskView = domain.DefaultTaskView
	}

	_, err := r.pool.Exec(ctx, createUser,
		u.ID,
		u.Email,
		pgtype.Text{String: u.Username, Valid: u.Username != ""},
		u.PasswordHash,
		u.TaskView,
		u.CreatedAt,
		u.UpdatedAt,
	)
	return mapUniqueViolation(err)
}
