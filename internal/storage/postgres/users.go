package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cxbootcamp/premiers/internal/models"
	"github.com/cxbootcamp/premiers/internal/storage"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, is_active, is_staff, is_superuser,
		is_restoring_password, date_joined, last_login`

func (r *PostgresRepo) SaveUser(ctx context.Context, email string, passHash []byte) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, email, passHash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1;`, userColumns)

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1;`, userColumns)

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// ActivateUser flips is_active on. Activating an already active user is a
// no-op, which keeps the transition idempotent.
func (r *PostgresRepo) ActivateUser(ctx context.Context, email string) error {
	const op = "storage.postgres.ActivateUser"

	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) MarkRestoringPassword(ctx context.Context, email string) error {
	const op = "storage.postgres.MarkRestoringPassword"

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_restoring_password = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// RestorePassword replaces the password hash and clears the restoring flag
// in one transaction. The row is locked first so the flag check and the
// update are atomic with respect to concurrent restores.
func (r *PostgresRepo) RestorePassword(ctx context.Context, email string, passHash []byte) error {
	const op = "storage.postgres.RestorePassword"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	var restoring bool
	err = tx.QueryRow(ctx,
		`SELECT is_restoring_password FROM users WHERE email = $1 FOR UPDATE`, email,
	).Scan(&restoring)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrUserNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if !restoring {
		return storage.ErrRestoreNotPending
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, is_restoring_password = FALSE
		WHERE email = $2`,
		passHash, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, userID int64, passHash []byte) error {
	const op = "storage.postgres.UpdatePassword"

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`, passHash, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// ChangeEmail swaps the address and forces the account back to inactive in
// one statement, so no reader ever sees the new address on an active row
// before re-activation.
func (r *PostgresRepo) ChangeEmail(ctx context.Context, userID int64, email string) error {
	const op = "storage.postgres.ChangeEmail"

	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $1, is_active = FALSE
		WHERE id = $2`,
		email, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrUserExists
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) DeactivateUser(ctx context.Context, userID int64) error {
	const op = "storage.postgres.DeactivateUser"

	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	const op = "storage.postgres.UpdateLastLogin"

	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PassHash,
		&u.IsActive,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.IsRestoringPassword,
		&u.DateJoined,
		&u.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}
