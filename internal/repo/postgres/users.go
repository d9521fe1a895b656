package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/identityhub/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBObserver times a logical DB operation. observability.Prom satisfies it.
type DBObserver interface {
	ObserveDB(op string, fn func() error) error
}

type noopObserver struct{}

func (noopObserver) ObserveDB(_ string, fn func() error) error { return fn() }

type UsersRepo struct {
	pool *pgxpool.Pool
	obs  DBObserver
}

func NewUsersRepo(pool *pgxpool.Pool, obs DBObserver) *UsersRepo {
	if obs == nil {
		obs = noopObserver{}
	}
	return &UsersRepo{pool: pool, obs: obs}
}

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var role string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	u.Role = user.Role(role)
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.obs.ObserveDB("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})
	return u, err
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.obs.ObserveDB("users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return err
	})
	return u, err
}

func (r *UsersRepo) List(ctx context.Context, offset, limit int) ([]user.User, int, error) {
	output := make([]user.User, 0, limit)
	total := 0

	err := r.obs.ObserveDB("users.list", func() error {
		err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
		if err != nil {
			return err
		}

		// stable ordering for pagination
		rows, err := r.pool.Query(ctx,
			`SELECT `+userColumns+`
			FROM users
			ORDER BY created_at ASC, id ASC
			LIMIT $1 OFFSET $2`,
			limit, offset,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			output = append(output, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return output, total, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	return r.obs.ObserveDB("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role), u.CreatedAt, u.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return err
	})
}

// Update locks the row, applies mutate and writes back only the mutable columns.
func (r *UsersRepo) Update(ctx context.Context, id string, mutate func(*user.User) error) (user.User, error) {
	var out user.User

	err := r.obs.ObserveDB("users.update", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		current, err := scanUser(tx.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		next := current
		if err := mutate(&next); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET name = $2, password_hash = $3, updated_at = $4 WHERE id = $1`,
			id, next.Name, next.PasswordHash, next.UpdatedAt,
		)
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		next.ID = current.ID
		next.Email = current.Email
		next.Role = current.Role
		next.CreatedAt = current.CreatedAt
		out = next
		return nil
	})
	return out, err
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	return r.obs.ObserveDB("users.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

func (r *UsersRepo) CountByRole(ctx context.Context) (map[user.Role]int, error) {
	out := make(map[user.Role]int, 2)

	err := r.obs.ObserveDB("users.count_by_role", func() error {
		rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var role string
			var n int
			if err := rows.Scan(&role, &n); err != nil {
				return err
			}
			out[user.Role(role)] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
