package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/middleware"
	"taskmanager/internal/modules/auth"
	"taskmanager/internal/modules/task"
)

type Deps struct {
	Logger         *slog.Logger
	Tokens         middleware.TokenVerifier
	Binding        middleware.BindingPolicy
	Auth           *auth.Handler
	Tasks          *task.Handler
	AllowedOrigins []string
	// TrustedProxies lists proxy addresses or CIDRs whose X-Forwarded-For is
	// honoured. Empty means the client IP is the peer address.
	TrustedProxies []string
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine with public and guarded /api routes.
func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(
		middleware.RequestLogger(d.Logger),
		middleware.ErrorLogger(),
		middleware.CORS(d.AllowedOrigins),
		middleware.Timeout(d.RequestTimeout),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// public
		d.Auth.RegisterPublicRoutes(api)

		protected := api.Group("")
		protected.Use(middleware.JWTAuth(d.Tokens, d.Binding))
		{
			d.Auth.RegisterProtectedRoutes(protected)
			d.Tasks.RegisterRoutes(protected)
		}
	}

	return r, nil
}
