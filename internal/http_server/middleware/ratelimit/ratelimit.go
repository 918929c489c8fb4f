package ratelimit

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

func Login() func(http.Handler) http.Handler {
	return limitByIP(10, 5*time.Minute)
}

func SignUp() func(http.Handler) http.Handler {
	return limitByIP(5, time.Hour)
}

func Refresh() func(http.Handler) http.Handler {
	return limitByIP(30, 10*time.Minute)
}

func Token() func(http.Handler) http.Handler {
	return limitByIP(10, 10*time.Minute)
}

func Reset() func(http.Handler) http.Handler {
	return limitByIP(3, time.Hour)
}

func Upload() func(http.Handler) http.Handler {
	return limitByIP(30, time.Hour)
}

func limitByIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window)
}
