package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cxbootcamp/premiers/internal/lib/slug"
	"github.com/cxbootcamp/premiers/internal/models"
	"github.com/cxbootcamp/premiers/internal/storage"
)

// searchResultWindow caps how many ids the search boundary may return.
const searchResultWindow = 500

// CreatePremier persists a premier with the two-phase slug assignment: the
// row is first inserted with a "rand:<uuid>" sentinel so the unique
// constraint is satisfied, then updated to "<id>-<slug>" once the id is
// known. Both phases run in one transaction, so no reader ever observes the
// sentinel.
func (r *PostgresRepo) CreatePremier(ctx context.Context, p *models.Premier) error {
	const op = "storage.postgres.CreatePremier"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO premiers (user_id, name, url, description, logo, is_active, premier_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, last_updated_at`,
		p.UserID, p.Name, slug.Placeholder(uuid.NewString()), p.Description, p.Logo, p.IsActive, p.PremierAt,
	).Scan(&p.ID, &p.CreatedAt, &p.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.URL = slug.Make(p.ID, p.Name)

	_, err = tx.Exec(ctx, `UPDATE premiers SET url = $1 WHERE id = $2`, p.URL, p.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ListPremiersParams narrows and pages the premier listing.
type ListPremiersParams struct {
	// IDs restricts the listing to a ranked search result set. Nil means
	// no restriction; an empty non-nil slice yields no rows.
	IDs    []int64
	Limit  int
	Offset int
}

// ListPremiers returns active premiers newest first. Rating, is_future and
// the top comment are all computed inside the database so the annotations
// compose with pagination.
func (r *PostgresRepo) ListPremiers(ctx context.Context, params ListPremiersParams) ([]models.Premier, error) {
	const op = "storage.postgres.ListPremiers"

	query := `
		SELECT p.id, p.user_id, COALESCE(u.email, ''), p.name, p.url,
		       COALESCE(p.description, ''), COALESCE(p.logo, ''),
		       p.premier_at, p.created_at, p.last_updated_at,
		       p.premier_at > NOW() AS is_future,
		       COALESCE((
		           SELECT SUM(v.rating) FROM votes v
		           WHERE v.target_kind = 1 AND v.target_id = p.id
		       ), 0) AS rating,
		       (
		           SELECT c.id FROM premier_comments c
		           LEFT JOIN votes cv ON cv.target_kind = 2 AND cv.target_id = c.id
		           WHERE c.premier_id = p.id
		           GROUP BY c.id
		           ORDER BY COALESCE(SUM(cv.rating), 0) DESC, c.id ASC
		           LIMIT 1
		       ) AS top_comment_id
		FROM premiers p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.is_active = TRUE
	`

	args := []any{}
	if params.IDs != nil {
		args = append(args, params.IDs)
		query += fmt.Sprintf(" AND p.id = ANY($%d)", len(args))
	}

	args = append(args, params.Limit)
	query += fmt.Sprintf(" ORDER BY p.id DESC LIMIT $%d", len(args))
	args = append(args, params.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	premiers := make([]models.Premier, 0)
	for rows.Next() {
		var p models.Premier
		err := rows.Scan(
			&p.ID, &p.UserID, &p.UserEmail, &p.Name, &p.URL,
			&p.Description, &p.Logo,
			&p.PremierAt, &p.CreatedAt, &p.LastUpdatedAt,
			&p.IsFuture, &p.Rating, &p.TopCommentID,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		premiers = append(premiers, p)
	}

	return premiers, rows.Err()
}

func (r *PostgresRepo) CountPremiers(ctx context.Context, ids []int64) (int, error) {
	const op = "storage.postgres.CountPremiers"

	query := `SELECT COUNT(1) FROM premiers WHERE is_active = TRUE`
	args := []any{}
	if ids != nil {
		args = append(args, ids)
		query += " AND id = ANY($1)"
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (r *PostgresRepo) PremierByID(ctx context.Context, id int64) (models.Premier, error) {
	query := `
		SELECT p.id, p.user_id, COALESCE(u.email, ''), p.name, p.url,
		       COALESCE(p.description, ''), COALESCE(p.logo, ''),
		       p.is_active, p.premier_at, p.created_at, p.last_updated_at
		FROM premiers p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.id = $1;
	`

	var p models.Premier
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.UserEmail, &p.Name, &p.URL,
		&p.Description, &p.Logo,
		&p.IsActive, &p.PremierAt, &p.CreatedAt, &p.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Premier{}, storage.ErrPremierNotFound
		}
		return models.Premier{}, err
	}

	return p, nil
}

// SearchPremierIDs resolves a free-text phrase to a ranked id set, capped at
// the search result window. Ranking happens entirely in the database.
func (r *PostgresRepo) SearchPremierIDs(ctx context.Context, phrase string) ([]int64, error) {
	const op = "storage.postgres.SearchPremierIDs"

	query := `
		SELECT id
		FROM premiers
		WHERE is_active = TRUE
		  AND to_tsvector('english', name || ' ' || COALESCE(description, ''))
		      @@ websearch_to_tsquery('english', $1)
		ORDER BY ts_rank(
		    to_tsvector('english', name || ' ' || COALESCE(description, '')),
		    websearch_to_tsquery('english', $1)
		) DESC, id DESC
		LIMIT $2;
	`

	rows, err := r.pool.Query(ctx, query, phrase, searchResultWindow)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *PostgresRepo) SaveComment(ctx context.Context, c *models.Comment) error {
	const op = "storage.postgres.SaveComment"

	err := r.pool.QueryRow(ctx, `
		INSERT INTO premier_comments (user_id, premier_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, last_updated_at`,
		c.UserID, c.PremierID, c.Text,
	).Scan(&c.ID, &c.CreatedAt, &c.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) CommentByID(ctx context.Context, id int64) (models.Comment, error) {
	query := `
		SELECT id, user_id, premier_id, text, created_at, last_updated_at
		FROM premier_comments
		WHERE id = $1;
	`

	var c models.Comment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.PremierID, &c.Text, &c.CreatedAt, &c.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, storage.ErrCommentNotFound
		}
		return models.Comment{}, err
	}

	return c, nil
}

// TopCommentID finds the comment of the premier with the highest vote sum.
// Ties break on the lowest id; a premier without comments yields nil.
func (r *PostgresRepo) TopCommentID(ctx context.Context, premierID int64) (*int64, error) {
	const op = "storage.postgres.TopCommentID"

	query := `
		SELECT c.id
		FROM premier_comments c
		LEFT JOIN votes v ON v.target_kind = 2 AND v.target_id = c.id
		WHERE c.premier_id = $1
		GROUP BY c.id
		ORDER BY COALESCE(SUM(v.rating), 0) DESC, c.id ASC
		LIMIT 1;
	`

	var id int64
	err := r.pool.QueryRow(ctx, query, premierID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &id, nil
}
