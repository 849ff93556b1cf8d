package routes

import (
	"kimichat/kimichat/config"
	"kimichat/kimichat/controllers"
	"kimichat/kimichat/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every relay route. No request timeout is installed: a
// stream lasts as long as the upstream generation, bounded by max_tokens.
func NewRouter(cfg config.Config, chatCtrl *controllers.ChatController, authCtrl *controllers.AuthController, healthCtrl *controllers.HealthController) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestMiddleware)
	r.Use(middleware.Recoverer)

	r.Mount("/healthz", HealthRoutes(healthCtrl))
	r.Mount("/auth", AuthRoutes(authCtrl))
	r.Mount("/chat", ChatRoutes(chatCtrl, cfg))
	return r
}
