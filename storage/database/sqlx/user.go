package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           int          `db:"id"`
	Name         string       `db:"name"`
	Username     string       `db:"username"`
	Email        string       `db:"email"`
	IsActive     bool         `db:"is_active"`
	Roles        string       `db:"roles"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (r userRow) unpack() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        user.SplitRoles(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{repository{db: db}}
}

// trapNoRowsErr maps "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	var cnt int
	q := exe.Rebind(`SELECT COUNT(*) FROM "user" WHERE username = ? OR email = ?`)
	if err := exe.GetContext(ctx, &cnt, q, username, email); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if cnt > 0 {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	id, err := insert(ctx, repo.getExec(exec),
		`INSERT INTO "user" (name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		usr.Name, usr.Username, usr.Email, usr.IsActive, user.JoinRoles(usr.Roles), usr.PasswordHash,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), nullTime(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)

	var q string
	var args []interface{}
	switch {
	case filter.ID != 0:
		q, args = `SELECT `+userColumns+` FROM "user" WHERE id = ?`, []interface{}{filter.ID}
	case filter.UsernameOrEmail != "":
		q, args = `SELECT `+userColumns+` FROM "user" WHERE username = ? OR email = ? ORDER BY id LIMIT 1`,
			[]interface{}{filter.UsernameOrEmail, filter.UsernameOrEmail}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(q), args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.unpack(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind(
		`UPDATE "user" SET name = ?, username = ?, email = ?, is_active = ?, roles = ?, password_hash = ?,
		updated_at = ?, last_login = ? WHERE id = ?`),
		usr.Name, usr.Username, usr.Email, usr.IsActive, user.JoinRoles(usr.Roles), usr.PasswordHash,
		usr.UpdatedAt.UTC(), nullTime(usr.LastLogin), usr.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
