package deactivate

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/cxbootcamp/premiers/internal/http_server/middleware/authn"
	resp "github.com/cxbootcamp/premiers/internal/lib/api/response"
	sl "github.com/cxbootcamp/premiers/internal/lib/logger"
)

type Accounts interface {
	Deactivate(ctx context.Context, userID int64) error
}

func New(log *slog.Logger, service Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.deactivate.New"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := service.Deactivate(ctx, userID); err != nil {
			log.Error("failed to deactivate user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("user deactivated", slog.Int64("uid", userID))

		render.JSON(w, r, resp.OK())
	}
}
