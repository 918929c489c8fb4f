package premiers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cxbootcamp/premiers/internal/lib/slug"
	"github.com/cxbootcamp/premiers/internal/models"
	"github.com/cxbootcamp/premiers/internal/storage"
	pgstore "github.com/cxbootcamp/premiers/internal/storage/postgres"
)

type fakeStorage struct {
	premiers map[int64]models.Premier
	comments map[int64]models.Comment
	votes    map[string]models.Vote
	nextID   int64

	searchIDs  []int64
	listParams *pgstore.ListPremiersParams
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		premiers: make(map[int64]models.Premier),
		comments: make(map[int64]models.Comment),
		votes:    make(map[string]models.Vote),
	}
}

func (s *fakeStorage) CreatePremier(_ context.Context, p *models.Premier) error {
	s.nextID++
	p.ID = s.nextID
	p.URL = slug.Make(p.ID, p.Name)
	p.CreatedAt = time.Now()
	p.LastUpdatedAt = p.CreatedAt
	s.premiers[p.ID] = *p
	return nil
}

func (s *fakeStorage) ListPremiers(_ context.Context, params pgstore.ListPremiersParams) ([]models.Premier, error) {
	s.listParams = &params
	out := make([]models.Premier, 0)
	for _, p := range s.premiers {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStorage) CountPremiers(_ context.Context, ids []int64) (int, error) {
	if ids != nil {
		return len(ids), nil
	}
	return len(s.premiers), nil
}

func (s *fakeStorage) PremierByID(_ context.Context, id int64) (models.Premier, error) {
	p, ok := s.premiers[id]
	if !ok {
		return models.Premier{}, storage.ErrPremierNotFound
	}
	return p, nil
}

func (s *fakeStorage) SearchPremierIDs(_ context.Context, _ string) ([]int64, error) {
	return s.searchIDs, nil
}

func (s *fakeStorage) SaveComment(_ context.Context, c *models.Comment) error {
	s.nextID++
	c.ID = s.nextID
	s.comments[c.ID] = *c
	return nil
}

func (s *fakeStorage) CommentByID(_ context.Context, id int64) (models.Comment, error) {
	c, ok := s.comments[id]
	if !ok {
		return models.Comment{}, storage.ErrCommentNotFound
	}
	return c, nil
}

func (s *fakeStorage) UpsertVote(_ context.Context, v *models.Vote) error {
	key := voteKey(v.UserID, v.TargetKind, v.TargetID)
	if prev, ok := s.votes[key]; ok {
		v.ID = prev.ID
	} else {
		s.nextID++
		v.ID = s.nextID
	}
	s.votes[key] = *v
	return nil
}

func (s *fakeStorage) Rating(_ context.Context, kind models.TargetKind, targetID int64) (int64, error) {
	var sum int64
	for _, v := range s.votes {
		if v.TargetKind == kind && v.TargetID == targetID {
			sum += int64(v.Rating)
		}
	}
	return sum, nil
}

func (s *fakeStorage) TopCommentID(_ context.Context, premierID int64) (*int64, error) {
	var best *int64
	var bestRating int64
	for id, c := range s.comments {
		if c.PremierID != premierID {
			continue
		}
		rating, _ := s.Rating(context.Background(), models.TargetComment, id)
		id := id
		if best == nil || rating > bestRating || (rating == bestRating && id < *best) {
			best = &id
			bestRating = rating
		}
	}
	return best, nil
}

func voteKey(userID int64, kind models.TargetKind, targetID int64) string {
	return fmt.Sprintf("%d:%s:%d", userID, kind, targetID)
}

func newService(store *fakeStorage) *Premiers {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, store, 20, 100)
}

func TestCreateAssignsSlug(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	svc := newService(store)

	p, err := svc.Create(context.Background(), 1, "Test", "Desc", "", time.Now())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("expected assigned id")
	}
	want := slug.Make(p.ID, "Test")
	if p.URL != want {
		t.Fatalf("slug mismatch: got %q want %q", p.URL, want)
	}
}

func TestVoteValidation(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	svc := newService(store)

	store.premiers[1] = models.Premier{ID: 1, Name: "P"}

	if _, err := svc.Vote(context.Background(), 1, "user", 1, 1); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("kind outside allow-list must be rejected, got %v", err)
	}

	if _, err := svc.Vote(context.Background(), 1, "premier", 1, 2); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating outside {-1,0,1} must be rejected, got %v", err)
	}

	if _, err := svc.Vote(context.Background(), 1, "premier", 999, 1); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("missing target must be rejected, got %v", err)
	}

	if _, err := svc.Vote(context.Background(), 1, "comment", 999, 1); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("missing comment target must be rejected, got %v", err)
	}

	if _, err := svc.Vote(context.Background(), 1, "premier", 1, -1); err != nil {
		t.Fatalf("valid vote rejected: %v", err)
	}
}

func TestRepeatVoteReplacesRating(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	svc := newService(store)

	store.premiers[1] = models.Premier{ID: 1, Name: "P"}

	if _, err := svc.Vote(context.Background(), 7, "premier", 1, 1); err != nil {
		t.Fatalf("Vote error: %v", err)
	}
	if _, err := svc.Vote(context.Background(), 7, "premier", 1, -1); err != nil {
		t.Fatalf("Vote error: %v", err)
	}

	rating, err := svc.Rating(context.Background(), "premier", 1)
	if err != nil {
		t.Fatalf("Rating error: %v", err)
	}
	if rating != -1 {
		t.Fatalf("repeat vote must replace, rating = %d want -1", rating)
	}
}

func TestRatingSumsAcrossVoters(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	svc := newService(store)

	store.premiers[1] = models.Premier{ID: 1, Name: "P"}

	for uid := int64(1); uid <= 3; uid++ {
		if _, err := svc.Vote(context.Background(), uid, "premier", 1, 1); err != nil {
			t.Fatalf("Vote error: %v", err)
		}
	}
	if _, err := svc.Vote(context.Background(), 4, "premier", 1, -1); err != nil {
		t.Fatalf("Vote error: %v", err)
	}

	rating, err := svc.Rating(context.Background(), "premier", 1)
	if err != nil {
		t.Fatalf("Rating error: %v", err)
	}
	if rating != 2 {
		t.Fatalf("rating = %d, want 2", rating)
	}
}

func TestRatingZeroVotes(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	svc := newService(store)

	rating, err := svc.Rating(context.Background(), "premier", 42)
	if err != nil {
		t.Fatalf("rating of voteless target must not error: %v", err)
	}
	if rating != 0 {
		t.Fatalf("rating = %d, want 0", rating)
	}
}

func TestAddCommentRequiresPremier(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	svc := newService(store)

	if _, err := svc.AddComment(context.Background(), 1, 99, "hi"); !errors.Is(err, ErrPremierNotFound) {
		t.Fatalf("expected ErrPremierNotFound, got %v", err)
	}

	store.premiers[1] = models.Premier{ID: 1, Name: "P"}
	c, err := svc.AddComment(context.Background(), 1, 1, "hi")
	if err != nil {
		t.Fatalf("AddComment error: %v", err)
	}
	if c.ID == 0 || c.PremierID != 1 {
		t.Fatalf("unexpected comment: %+v", c)
	}
}

func TestTopComment(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	svc := newService(store)

	store.premiers[1] = models.Premier{ID: 1, Name: "P"}

	zero, _ := svc.AddComment(context.Background(), 1, 1, "meh")
	top, _ := svc.AddComment(context.Background(), 1, 1, "great")

	if _, err := svc.Vote(context.Background(), 1, "comment", zero.ID, -1); err != nil {
		t.Fatalf("Vote error: %v", err)
	}
	if _, err := svc.Vote(context.Background(), 1, "comment", top.ID, 1); err != nil {
		t.Fatalf("Vote error: %v", err)
	}

	got, err := svc.TopComment(context.Background(), 1)
	if err != nil {
		t.Fatalf("TopComment error: %v", err)
	}
	if got == nil || *got != top.ID {
		t.Fatalf("top comment = %v, want %d", got, top.ID)
	}
}

func TestTopCommentNoComments(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	svc := newService(store)

	store.premiers[1] = models.Premier{ID: 1, Name: "P"}

	got, err := svc.TopComment(context.Background(), 1)
	if err != nil {
		t.Fatalf("TopComment error: %v", err)
	}
	if got != nil {
		t.Fatalf("premier without comments must yield nil, got %v", got)
	}
}

func TestListPaging(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	svc := newService(store)

	res, err := svc.List(context.Background(), 0, 0, "")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if res.Page != 1 || res.PageSize != 20 {
		t.Fatalf("defaults not applied: page=%d size=%d", res.Page, res.PageSize)
	}
	if store.listParams.Limit != 20 || store.listParams.Offset != 0 {
		t.Fatalf("unexpected window: %+v", store.listParams)
	}

	if _, err := svc.List(context.Background(), 3, 1000, ""); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if store.listParams.Limit != 100 {
		t.Fatalf("page size must be capped at 100, got %d", store.listParams.Limit)
	}
	if store.listParams.Offset != 200 {
		t.Fatalf("offset = %d, want 200", store.listParams.Offset)
	}
	if store.listParams.IDs != nil {
		t.Fatal("no search phrase must mean no id restriction")
	}
}

func TestListWithSearchRestrictsIDs(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	store.searchIDs = []int64{5, 3}
	svc := newService(store)

	res, err := svc.List(context.Background(), 1, 10, "batman")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("total = %d, want 2", res.Total)
	}
	if len(store.listParams.IDs) != 2 {
		t.Fatalf("search ids not forwarded: %+v", store.listParams)
	}
}

func TestListSearchNoMatches(t *testing.T) {
	t.Parallel()

	store := newFakeStorage()
	store.premiers[1] = models.Premier{ID: 1, Name: "P"}
	store.searchIDs = nil
	svc := newService(store)

	res, err := svc.List(context.Background(), 1, 10, "nothing")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if res.Total != 0 {
		t.Fatalf("phrase with no matches must yield empty set, total=%d", res.Total)
	}
	if store.listParams.IDs == nil {
		t.Fatal("empty search result must still restrict ids")
	}
}
