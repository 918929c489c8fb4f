package postgres

import (
	"context"
	"fmt"

	"github.com/cxbootcamp/premiers/internal/models"
)

// UpsertVote records the voter's rating for a target. One vote row per
// (voter, target): casting again replaces the previous rating instead of
// stacking rows.
func (r *PostgresRepo) UpsertVote(ctx context.Context, v *models.Vote) error {
	const op = "storage.postgres.UpsertVote"

	err := r.pool.QueryRow(ctx, `
		INSERT INTO votes (user_id, target_kind, target_id, rating)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, target_kind, target_id)
		DO UPDATE SET rating = EXCLUDED.rating
		RETURNING id, created_at`,
		v.UserID, int16(v.TargetKind), v.TargetID, v.Rating,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Rating sums every vote for the target. A target with no votes rates 0,
// never NULL and never an error.
func (r *PostgresRepo) Rating(ctx context.Context, kind models.TargetKind, targetID int64) (int64, error) {
	const op = "storage.postgres.Rating"

	var rating int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(rating), 0)
		FROM votes
		WHERE target_kind = $1 AND target_id = $2`,
		int16(kind), targetID,
	).Scan(&rating)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return rating, nil
}
