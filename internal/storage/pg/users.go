package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"remindbot/internal/platform/pg"
	"remindbot/internal/shared"
	"remindbot/internal/task"
)

// UserRepo is the PostgreSQL user repository.
type UserRepo struct {
	runner *pg.TxRunner
}

// NewUserRepo creates the user repository.
func NewUserRepo(runner *pg.TxRunner) *UserRepo {
	return &UserRepo{runner: runner}
}

var _ task.UserRepository = (*UserRepo)(nil)

const userColumns = `id, phone, chat_id, timezone`

// Create inserts a user.
func (r *UserRepo) Create(ctx context.Context, u *task.User) error {
	_, err := r.runner.Querier(ctx).Exec(ctx,
		`INSERT INTO users (id, phone, chat_id, timezone) VALUES ($1,$2,$3,$4)`,
		u.ID, u.Phone, u.ChatID, u.Timezone)
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "insert user")
	}
	return nil
}

// GetByID returns a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*task.User, error) {
	return r.scanOne(r.runner.Querier(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByPhone returns a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*task.User, error) {
	return r.scanOne(r.runner.Querier(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

// GetByChatID returns a user by chat id.
func (r *UserRepo) GetByChatID(ctx context.Context, chatID int64) (*task.User, error) {
	return r.scanOne(r.runner.Querier(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id = $1`, chatID))
}

func (r *UserRepo) scanOne(row pgx.Row) (*task.User, error) {
	var u task.User
	if err := row.Scan(&u.ID, &u.Phone, &u.ChatID, &u.Timezone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.Wrap(shared.ErrNotFound, "user")
		}
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "scan user")
	}
	return &u, nil
}
