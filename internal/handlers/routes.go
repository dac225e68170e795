package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/middleware"
	"github.com/vidfriends/videotube/internal/respond"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	APIPrefix   string
	Production  bool
	CORSOrigin  string
	BcryptCost  int
	Uploads     UploadConfig
	Cookies     CookieConfig
	Users       UserStore
	Tweets      TweetStore
	Videos      VideoStore
	Sessions    SessionManager
	Media       MediaTransfer
	Janitor     AssetJanitor
	RateLimiter middleware.RateLimiter
	Metrics     *middleware.Metrics
	Logger      *zap.Logger
	HealthCheck func(ctx context.Context) error
	NowFunc     func() time.Time
}

// NewRouter wires every endpoint under the API prefix.
func NewRouter(deps Dependencies) http.Handler {
	renderer := respond.Renderer{Production: deps.Production}
	prefix := deps.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}

	health := HealthHandler{Renderer: renderer, Check: deps.HealthCheck}
	authH := AuthHandler{
		Users:      deps.Users,
		Sessions:   deps.Sessions,
		Media:      deps.Media,
		Uploads:    deps.Uploads,
		Cookies:    deps.Cookies,
		Renderer:   renderer,
		BcryptCost: deps.BcryptCost,
		NowFunc:    deps.NowFunc,
	}
	users := UserHandler{
		Users:      deps.Users,
		Videos:     deps.Videos,
		Media:      deps.Media,
		Janitor:    deps.Janitor,
		Uploads:    deps.Uploads,
		Renderer:   renderer,
		BcryptCost: deps.BcryptCost,
	}
	tweets := TweetHandler{Tweets: deps.Tweets, Users: deps.Users, Renderer: renderer, NowFunc: deps.NowFunc}
	videos := VideoHandler{
		Videos:   deps.Videos,
		Users:    deps.Users,
		Media:    deps.Media,
		Janitor:  deps.Janitor,
		Uploads:  deps.Uploads,
		Renderer: renderer,
		NowFunc:  deps.NowFunc,
	}

	gate := middleware.Authenticate(deps.Sessions, deps.Users, renderer)
	limited := middleware.RateLimit(deps.RateLimiter, "users", renderer)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(deps.Logger, renderer))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(middleware.CORS(deps.CORSOrigin))

	notFound := func(w http.ResponseWriter, r *http.Request) {
		renderer.Error(r.Context(), w, apperr.NotFound("Route not found"))
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route(prefix, func(api chi.Router) {
		api.Get("/healthcheck", health.Handle)

		api.Route("/users", func(ur chi.Router) {
			ur.Group(func(pub chi.Router) {
				pub.Use(limited)
				pub.Post("/register", authH.Register)
				pub.Post("/login", authH.Login)
				pub.Post("/refresh-token", authH.RefreshToken)
			})
			ur.Group(func(priv chi.Router) {
				priv.Use(gate)
				priv.Post("/logout", authH.Logout)
				priv.Post("/change-password", users.ChangePassword)
				priv.Get("/profile", users.Profile)
				priv.Patch("/update-account", users.UpdateAccount)
				priv.Patch("/avatar", users.UpdateAvatar)
				priv.Patch("/cover-image", users.UpdateCoverImage)
				priv.Get("/history", users.WatchHistory)
			})
		})

		api.Route("/tweets", func(tr chi.Router) {
			tr.Use(gate)
			tr.Post("/", tweets.Create)
			tr.Get("/user/{userId}", tweets.ListByUser)
			tr.Patch("/{tweetId}", tweets.Update)
			tr.Delete("/{tweetId}", tweets.Delete)
		})

		api.Route("/videos", func(vr chi.Router) {
			vr.Use(gate)
			vr.Get("/", videos.List)
			vr.Post("/", videos.Publish)
			vr.Patch("/toggle/publish/{videoId}", videos.TogglePublish)
			vr.Get("/{videoId}", videos.Get)
			vr.Patch("/{videoId}", videos.Update)
			vr.Delete("/{videoId}", videos.Delete)
		})
	})

	return r
}
