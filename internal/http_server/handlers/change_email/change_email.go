package change_email

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/cxbootcamp/premiers/internal/accounts"
	"github.com/cxbootcamp/premiers/internal/http_server/middleware/authn"
	resp "github.com/cxbootcamp/premiers/internal/lib/api/response"
	sl "github.com/cxbootcamp/premiers/internal/lib/logger"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
	Path  string `json:"path" validate:"required,fepath"`
}

type Accounts interface {
	ChangeEmail(ctx context.Context, userID int64, newEmail, path string) error
}

func New(log *slog.Logger, validate *validator.Validate, service Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.change_email.New"

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

		if err := service.ChangeEmail(ctx, userID, req.Email, req.Path); err != nil {
			if errors.Is(err, accounts.ErrUserExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("email already taken"))

				return
			}

			log.Error("failed to change email", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("email changed", slog.Int64("uid", userID))

		render.JSON(w, r, resp.OK())
	}
}
