package overrides

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akademos/akademos/internal/platform/db"
)

// Kinds stored in the user_overrides table.
const (
	kindCustom = "custom"
	kindDenied = "denied"
)

// PGRepository provides PostgreSQL backed persistence for overrides.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Load returns the stored custom and denied permission names for a user.
func (r *PGRepository) Load(ctx context.Context, userID int64) (custom, denied []string, err error) {
	rows, err := r.pool.Query(ctx,
		`SELECT permission, kind FROM user_overrides WHERE user_id = $1 ORDER BY permission`,
		userID)
	if err != nil {
		return nil, nil, fmt.Errorf("overrides: load: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var permission, kind string
		if err := rows.Scan(&permission, &kind); err != nil {
			return nil, nil, fmt.Errorf("overrides: scan: %w", err)
		}
		switch kind {
		case kindCustom:
			custom = append(custom, permission)
		case kindDenied:
			denied = append(denied, permission)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("overrides: rows: %w", err)
	}
	return custom, denied, nil
}

// Grant records a custom grant, removing any denial of the same permission
// in the same transaction.
func (r *PGRepository) Grant(ctx context.Context, userID int64, permission string) error {
	return r.upsert(ctx, userID, permission, kindCustom)
}

// Deny records a denial, removing any custom grant of the same permission in
// the same transaction.
func (r *PGRepository) Deny(ctx context.Context, userID int64, permission string) error {
	return r.upsert(ctx, userID, permission, kindDenied)
}

// Clear removes the permission from both sets.
func (r *PGRepository) Clear(ctx context.Context, userID int64, permission string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_overrides WHERE user_id = $1 AND permission = $2`,
		userID, permission)
	if err != nil {
		return fmt.Errorf("overrides: clear: %w", err)
	}
	return nil
}

func (r *PGRepository) upsert(ctx context.Context, userID int64, permission, kind string) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM user_overrides WHERE user_id = $1 AND permission = $2 AND kind <> $3`,
			userID, permission, kind); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO user_overrides (user_id, permission, kind) VALUES ($1, $2, $3)`,
			userID, permission, kind)
		if isUniqueViolation(err) {
			// Same kind already recorded; the mutation is idempotent.
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("overrides: %s %s: %w", kind, permission, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
