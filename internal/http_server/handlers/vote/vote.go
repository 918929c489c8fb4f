package vote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

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
	TargetKind string `json:"target_kind" validate:"required,oneof=premier comment"`
	TargetID   int64  `json:"target_id" validate:"required"`
	Rating     int16  `json:"rating" validate:"min=-1,max=1"`
}

type Response struct {
	resp.Response
	Rating int64 `json:"rating"`
}

type Premiers interface {
	Vote(ctx context.Context, userID int64, kindName string, targetID int64, rating int16) (models.Vote, error)
	Rating(ctx context.Context, kindName string, targetID int64) (int64, error)
}

func New(log *slog.Logger, validate *validator.Validate, service Premiers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.vote.New"

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

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
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

		_, err = service.Vote(ctx, userID, req.TargetKind, req.TargetID, req.Rating)
		if err != nil {
			switch {
			case errors.Is(err, premiers.ErrInvalidTarget), errors.Is(err, premiers.ErrInvalidRating):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error(err.Error()))
			case errors.Is(err, premiers.ErrTargetNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("vote target not found"))
			default:
				log.Error("failed to save vote", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		rating, err := service.Rating(ctx, req.TargetKind, req.TargetID)
		if err != nil {
			log.Error("failed to load rating", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Rating:   rating,
		})
	}
}
