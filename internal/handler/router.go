package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/mindful-chat/backend/internal/handler/admin"
	"github.com/zhouzirui/mindful-chat/backend/internal/handler/chat"
	middlewarePkg "github.com/zhouzirui/mindful-chat/backend/internal/middleware"
	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
	"github.com/zhouzirui/mindful-chat/backend/internal/observability"
	"github.com/zhouzirui/mindful-chat/backend/pkg/utils"
)

// Deps collects what the router needs to serve every route.
type Deps struct {
	Turns          chat.TurnService
	Admin          turn.AdminStore
	Auth           *middlewarePkg.Authenticator
	AdminLimiter   middlewarePkg.Limiter
	AdminWindow    time.Duration
	AllowedOrigins []string
	Log            *observability.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chatHandler := chat.New(deps.Turns, deps.Log)

	r.Route("/api", func(api chi.Router) {
		api.Route("/chat", func(cr chi.Router) {
			cr.Use(deps.Auth.RequireAuth)
			chatHandler.RegisterRoutes(cr)
		})

		if deps.Admin != nil {
			adminHandler := admin.New(deps.Admin, deps.Log)
			api.Route("/admin", func(ar chi.Router) {
				if deps.AdminLimiter != nil {
					ar.Use(middlewarePkg.RateLimit(deps.AdminLimiter, deps.AdminWindow, deps.Log))
				}
				ar.Use(deps.Auth.RequireAuth)
				ar.Use(deps.Auth.RequireAdmin)
				adminHandler.RegisterRoutes(ar)
			})
		}
	})

	return r
}
