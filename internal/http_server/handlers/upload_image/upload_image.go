// Package upload_image accepts a raw image body, verifies it actually
// decodes as an image and stores it in the object storage.
package upload_image

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/cxbootcamp/premiers/internal/http_server/middleware/authn"
	resp "github.com/cxbootcamp/premiers/internal/lib/api/response"
	sl "github.com/cxbootcamp/premiers/internal/lib/logger"
)

type Response struct {
	resp.Response
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Store interface {
	Save(ctx context.Context, data []byte, ext string, contentType string) (string, string, error)
}

func New(log *slog.Logger, store Store, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.upload_image.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if _, ok := authn.UserID(r.Context()); !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("authorization required"))

			return
		}

		contentType := r.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("body must be an image"))

			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
		if err != nil {
			log.Warn("failed to read image body", sl.Err(err))

			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, resp.Error("image is too large"))

			return
		}

		// The declared content type is not trusted: the payload must decode.
		_, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("body is not a valid image"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		name, url, err := store.Save(ctx, data, format, "image/"+format)
		if err != nil {
			log.Error("failed to store image", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("image stored", slog.String("name", name), slog.Int("size", len(data)))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response: resp.OK(),
			Name:     name,
			URL:      url,
		})
	}
}
