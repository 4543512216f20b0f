package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"remindbot/internal/platform/sqlite"
	"remindbot/internal/shared"
	"remindbot/internal/task"
)

// UserRepo is the SQLite user repository.
type UserRepo struct {
	runner *sqlite.TxRunner
}

// NewUserRepo creates the user repository.
func NewUserRepo(runner *sqlite.TxRunner) *UserRepo {
	return &UserRepo{runner: runner}
}

var _ task.UserRepository = (*UserRepo)(nil)

const userColumns = `id, phone, chat_id, timezone`

// Create inserts a user.
func (r *UserRepo) Create(ctx context.Context, u *task.User) error {
	_, err := r.runner.Querier(ctx).ExecContext(ctx,
		`INSERT INTO users (id, phone, chat_id, timezone) VALUES (?,?,?,?)`,
		u.ID, u.Phone, u.ChatID, u.Timezone)
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "insert user")
	}
	return nil
}

// GetByID returns a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*task.User, error) {
	return r.scanOne(r.runner.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetByPhone returns a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*task.User, error) {
	return r.scanOne(r.runner.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = ?`, phone))
}

// GetByChatID returns a user by chat id.
func (r *UserRepo) GetByChatID(ctx context.Context, chatID int64) (*task.User, error) {
	return r.scanOne(r.runner.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID))
}

func (r *UserRepo) scanOne(row *sql.Row) (*task.User, error) {
	var u task.User
	if err := row.Scan(&u.ID, &u.Phone, &u.ChatID, &u.Timezone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.Wrap(shared.ErrNotFound, "user")
		}
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "scan user")
	}
	return &u, nil
}
