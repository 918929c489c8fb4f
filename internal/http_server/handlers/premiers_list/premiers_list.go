package premiers_list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	resp "github.com/cxbootcamp/premiers/internal/lib/api/response"
	sl "github.com/cxbootcamp/premiers/internal/lib/logger"
	"github.com/cxbootcamp/premiers/internal/models"
	"github.com/cxbootcamp/premiers/internal/premiers"
)

// Item is one premier row with its DB-computed annotations.
type Item struct {
	ID           int64     `json:"id"`
	UserEmail    string    `json:"user,omitempty"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Description  string    `json:"description,omitempty"`
	Logo         string    `json:"logo,omitempty"`
	PremierAt    time.Time `json:"premier_at"`
	CreatedAt    time.Time `json:"created_at"`
	Rating       int64     `json:"rating"`
	IsFuture     bool      `json:"is_future"`
	TopCommentID *int64    `json:"top_comment_id"`
}

type Response struct {
	resp.Response
	Premiers []Item `json:"premiers"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type Premiers interface {
	List(ctx context.Context, page, pageSize int, search string) (premiers.ListResult, error)
}

func New(log *slog.Logger, service Premiers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.premiers_list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		search := r.URL.Query().Get("search")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := service.List(ctx, page, pageSize, search)
		if err != nil {
			log.Error("failed to list premiers", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		items := make([]Item, 0, len(res.Premiers))
		for _, p := range res.Premiers {
			items = append(items, toItem(p))
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Premiers: items,
			Total:    res.Total,
			Page:     res.Page,
			PageSize: res.PageSize,
		})
	}
}

func toItem(p models.Premier) Item {
	return Item{
		ID:           p.ID,
		UserEmail:    p.UserEmail,
		Name:         p.Name,
		URL:          p.URL,
		Description:  p.Description,
		Logo:         p.Logo,
		PremierAt:    p.PremierAt,
		CreatedAt:    p.CreatedAt,
		Rating:       p.Rating,
		IsFuture:     p.IsFuture,
		TopCommentID: p.TopCommentID,
	}
}
