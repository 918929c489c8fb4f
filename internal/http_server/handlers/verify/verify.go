// Package verify checks an access token without touching storage. Clients
// use it to validate a cached session before making authenticated calls.
package verify

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	resp "github.com/cxbootcamp/premiers/internal/lib/api/response"
	"github.com/cxbootcamp/premiers/internal/lib/jwt"
	sl "github.com/cxbootcamp/premiers/internal/lib/logger"
)

type Request struct {
	Token string `json:"token" validate:"required"`
}

type Response struct {
	resp.Response
	UserID int64 `json:"user_id"`
}

func New(log *slog.Logger, validate *validator.Validate, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

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

		claims, err := jwt.Parse(req.Token, jwtSecret, jwt.TypeAccess)
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("invalid token"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			UserID:   claims.UserID,
		})
	}
}
