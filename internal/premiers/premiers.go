// Package premiers implements the content resource: premier creation and
// listing, comments, and the polymorphic voting shared between premiers and
// comments.
package premiers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sl "github.com/cxbootcamp/premiers/internal/lib/logger"
	"github.com/cxbootcamp/premiers/internal/models"
	"github.com/cxbootcamp/premiers/internal/storage"
	pgstore "github.com/cxbootcamp/premiers/internal/storage/postgres"
)

var (
	ErrPremierNotFound = errors.New("premier not found")
	ErrTargetNotFound  = errors.New("vote target not found")
	ErrInvalidTarget   = errors.New("invalid vote target kind")
	ErrInvalidRating   = errors.New("rating must be -1, 0 or 1")
)

type Storage interface {
	CreatePremier(ctx context.Context, p *models.Premier) error
	ListPremiers(ctx context.Context, params pgstore.ListPremiersParams) ([]models.Premier, error)
	CountPremiers(ctx context.Context, ids []int64) (int, error)
	PremierByID(ctx context.Context, id int64) (models.Premier, error)
	SearchPremierIDs(ctx context.Context, phrase string) ([]int64, error)
	SaveComment(ctx context.Context, c *models.Comment) error
	CommentByID(ctx context.Context, id int64) (models.Comment, error)
	UpsertVote(ctx context.Context, v *models.Vote) error
	Rating(ctx context.Context, kind models.TargetKind, targetID int64) (int64, error)
	TopCommentID(ctx context.Context, premierID int64) (*int64, error)
}

type Premiers struct {
	log         *slog.Logger
	store       Storage
	pageSize    int
	maxPageSize int
}

func New(log *slog.Logger, store Storage, pageSize, maxPageSize int) *Premiers {
	return &Premiers{
		log:         log,
		store:       store,
		pageSize:    pageSize,
		maxPageSize: maxPageSize,
	}
}

// Create persists a new premier owned by the given user. The slug is
// assigned by storage in the same transaction as the insert.
func (p *Premiers) Create(ctx context.Context, userID int64, name, description, logo string, premierAt time.Time) (models.Premier, error) {
	const op = "premiers.Create"

	log := p.log.With(slog.String("op", op))

	premier := models.Premier{
		UserID:      &userID,
		Name:        strings.TrimSpace(name),
		Description: description,
		Logo:        logo,
		IsActive:    false,
		PremierAt:   premierAt,
	}

	if err := p.store.CreatePremier(ctx, &premier); err != nil {
		log.Error("failed to create premier", sl.Err(err))
		return models.Premier{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("premier created",
		slog.Int64("id", premier.ID), slog.String("url", premier.URL))

	return premier, nil
}

// ListResult is one page of the premier listing.
type ListResult struct {
	Premiers []models.Premier
	Total    int
	Page     int
	PageSize int
}

// List returns a page of active premiers. A non-empty search phrase first
// resolves to a ranked id window through the search boundary, then the page
// is cut from that set.
func (p *Premiers) List(ctx context.Context, page, pageSize int, search string) (ListResult, error) {
	const op = "premiers.List"

	log := p.log.With(slog.String("op", op))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = p.pageSize
	}
	if pageSize > p.maxPageSize {
		pageSize = p.maxPageSize
	}

	var ids []int64
	if phrase := strings.TrimSpace(search); phrase != "" {
		var err error
		ids, err = p.store.SearchPremierIDs(ctx, phrase)
		if err != nil {
			log.Error("search failed", sl.Err(err))
			return ListResult{}, fmt.Errorf("%s: %w", op, err)
		}
		if ids == nil {
			ids = []int64{}
		}
	}

	total, err := p.store.CountPremiers(ctx, ids)
	if err != nil {
		log.Error("failed to count premiers", sl.Err(err))
		return ListResult{}, fmt.Errorf("%s: %w", op, err)
	}

	items, err := p.store.ListPremiers(ctx, pgstore.ListPremiersParams{
		IDs:    ids,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		log.Error("failed to list premiers", sl.Err(err))
		return ListResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return ListResult{
		Premiers: items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// AddComment attaches a comment to an existing premier.
func (p *Premiers) AddComment(ctx context.Context, userID, premierID int64, text string) (models.Comment, error) {
	const op = "premiers.AddComment"

	log := p.log.With(slog.String("op", op))

	if _, err := p.store.PremierByID(ctx, premierID); err != nil {
		if errors.Is(err, storage.ErrPremierNotFound) {
			return models.Comment{}, ErrPremierNotFound
		}

		log.Error("failed to load premier", sl.Err(err))
		return models.Comment{}, fmt.Errorf("%s: %w", op, err)
	}

	comment := models.Comment{
		UserID:    userID,
		PremierID: premierID,
		Text:      text,
	}

	if err := p.store.SaveComment(ctx, &comment); err != nil {
		log.Error("failed to save comment", sl.Err(err))
		return models.Comment{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("comment added", slog.Int64("premier_id", premierID), slog.Int64("id", comment.ID))

	return comment, nil
}

// Vote records a rating for a premier or a comment. The target kind comes
// from a closed allow-list and is validated here, before storage. A repeat
// vote by the same user on the same target replaces the previous rating.
func (p *Premiers) Vote(ctx context.Context, userID int64, kindName string, targetID int64, rating int16) (models.Vote, error) {
	const op = "premiers.Vote"

	log := p.log.With(slog.String("op", op))

	kind, ok := models.ParseTargetKind(kindName)
	if !ok {
		return models.Vote{}, ErrInvalidTarget
	}

	if rating < -1 || rating > 1 {
		return models.Vote{}, ErrInvalidRating
	}

	if err := p.targetExists(ctx, kind, targetID); err != nil {
		return models.Vote{}, err
	}

	vote := models.Vote{
		UserID:     userID,
		TargetKind: kind,
		TargetID:   targetID,
		Rating:     rating,
	}

	if err := p.store.UpsertVote(ctx, &vote); err != nil {
		log.Error("failed to save vote", sl.Err(err))
		return models.Vote{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("vote recorded",
		slog.String("kind", kind.String()),
		slog.Int64("target_id", targetID),
		slog.Int("rating", int(rating)))

	return vote, nil
}

// Rating returns the vote sum for a target; zero votes rate 0.
func (p *Premiers) Rating(ctx context.Context, kindName string, targetID int64) (int64, error) {
	kind, ok := models.ParseTargetKind(kindName)
	if !ok {
		return 0, ErrInvalidTarget
	}

	return p.store.Rating(ctx, kind, targetID)
}

// TopComment returns the id of the premier's best-rated comment, or nil
// when the premier has no comments. Ties break on the lowest comment id.
func (p *Premiers) TopComment(ctx context.Context, premierID int64) (*int64, error) {
	const op = "premiers.TopComment"

	if _, err := p.store.PremierByID(ctx, premierID); err != nil {
		if errors.Is(err, storage.ErrPremierNotFound) {
			return nil, ErrPremierNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p.store.TopCommentID(ctx, premierID)
}

func (p *Premiers) targetExists(ctx context.Context, kind models.TargetKind, targetID int64) error {
	switch kind {
	case models.TargetPremier:
		if _, err := p.store.PremierByID(ctx, targetID); err != nil {
			if errors.Is(err, storage.ErrPremierNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
	case models.TargetComment:
		if _, err := p.store.CommentByID(ctx, targetID); err != nil {
			if errors.Is(err, storage.ErrCommentNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
	}

	return nil
}
