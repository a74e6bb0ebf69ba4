package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"dash/internal/pkg/auth/jwt"
	"dash/internal/pkg/limiter"
	"dash/internal/pkg/logx"
	"dash/internal/pkg/metrics"
	"dash/internal/pkg/resp"
)

const (
	AuthRate  = 1
	AuthBurst = 10
	JoinRate  = 0.2
	JoinBurst = 5
)

// Router sets up the HTTP routing table. Rate limiter sweeps stop when ctx is cancelled.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(AuthRate), AuthBurst)
	joinLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(JoinRate), JoinBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			// Non-browser clients send no Origin.
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Authorization"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(jwt.StripTrustedHeader)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondJSON(w, r, http.StatusOK, map[string]any{
			"status":            "ok",
			"service":           "dash",
			"chat_participants": deps.Manager.Count(),
		})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/auth", func(auth chi.Router) {
		auth.Group(func(open chi.Router) {
			open.Use(authLimiter.Middleware)
			open.Post("/register", HandleRegister(deps))
			open.Post("/login", HandleLogin(deps))
		})

		auth.Group(func(session chi.Router) {
			session.Use(jwt.Protect[jwt.SessionClaims](deps.Codec))
			session.Get("/test", HandleAuthTest(deps))
		})

		auth.Group(func(request chi.Router) {
			request.Use(jwt.Protect[jwt.RequestClaims](deps.Codec))
			request.Get("/request", HandleRequestToken(deps))
		})
	})

	r.Route("/user", func(u chi.Router) {
		u.Group(func(request chi.Router) {
			request.Use(jwt.Protect[jwt.RequestClaims](deps.Codec))
			request.Get("/info", HandleUserInfo(deps))
		})

		u.Group(func(session chi.Router) {
			session.Use(jwt.Protect[jwt.SessionClaims](deps.Codec))
			session.Get("/all", HandleListUsers(deps))
			session.Delete("/", HandleDeleteUser(deps))
		})
	})

	r.Route("/ws", func(ws chi.Router) {
		ws.Use(joinLimiter.Middleware)
		ws.Get("/", HandleWebSocket(deps.Manager, wsUpgrader))
	})

	return r
}
