package router

import (
	"net/http"
	"time"

	"foodvision/internal/dish"
	"foodvision/internal/middleware"
	"foodvision/internal/scoring"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

type Options struct {
	APIKey         string
	AllowedOrigins []string
	Dishes         *dish.Handler
	Scoring        *scoring.Handler
}

func NewRouter(opts Options) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	// ───────────────────────── PUBLIC ─────────────────────────
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "foodvision",
			"status":  "running",
			"version": Version,
		})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ───────────────────────── PROTECTED ─────────────────────────
	api := r.Group("")
	api.Use(middleware.APIKeyMiddleware(opts.APIKey))
	{
		if opts.Dishes != nil {
			opts.Dishes.RegisterRoutes(api)
		}
		if opts.Scoring != nil {
			opts.Scoring.RegisterRoutes(api)
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", middleware.APIKeyHeader},
		MaxAge:       12 * time.Hour,
	}

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
