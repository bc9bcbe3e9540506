package ws

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/bookrelay/chat-relay-service/internal/auth"
)

// NewRouter assembles the HTTP surface: the upgrade endpoint behind the
// authenticator, plus a liveness probe.
func NewRouter(authenticator *auth.Authenticator, chat *ChatHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/ws", func(r chi.Router) {
		r.Use(authenticator.Middleware)
		r.Get("/chat/{group_name}", chat.ServeHTTP)
	})

	return r
}
