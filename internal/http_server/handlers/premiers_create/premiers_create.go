package premiers_create

import (
	"context"
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
)

type Request struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description"`
	Logo        string    `json:"logo"`
	PremierAt   time.Time `json:"premier_at" validate:"required"`
}

type Response struct {
	resp.Response
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type Premiers interface {
	Create(ctx context.Context, userID int64, name, description, logo string, premierAt time.Time) (models.Premier, error)
}

func New(log *slog.Logger, validate *validator.Validate, service Premiers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.premiers_create.New"

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

		premier, err := service.Create(ctx, userID, req.Name, req.Description, req.Logo, req.PremierAt)
		if err != nil {
			log.Error("failed to create premier", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("premier created", slog.Int64("id", premier.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response: resp.OK(),
			ID:       premier.ID,
			URL:      premier.URL,
		})
	}
}
