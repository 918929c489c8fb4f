package add_comment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/cxbootcamp/premiers/internal/http_server/middleware/authn"
	resp "github.com/cxbootcamp/premiers/internal/lib/api/response"
	sl "github.com/cxbootcamp/premiers/internal/lib/logger"
	"github.com/cxbootcamp/premiers/internal/models"
	"github.com/cxbootcamp/premiers/internal/premiers"
)

type Request struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type Response struct {
	resp.Response
	CommentID int64 `json:"comment_id"`
}

type Premiers interface {
	AddComment(ctx context.Context, userID, premierID int64, text string) (models.Comment, error)
}

func New(log *slog.Logger, validate *validator.Validate, service Premiers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.add_comment.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, ok := authn.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("authorization required"))

			return
		}

		premierID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid premier id"))

			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		comment, err := service.AddComment(ctx, userID, premierID, req.Text)
		if err != nil {
			if errors.Is(err, premiers.ErrPremierNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("premier not found"))

				return
			}

			log.Error("failed to add comment", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("comment added", slog.Int64("comment_id", comment.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response:  resp.OK(),
			CommentID: comment.ID,
		})
	}
}
