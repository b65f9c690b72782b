package http

import (
	"context"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/open-builders/image-delivery-bot/internal/domain/record"
	mw "github.com/open-builders/image-delivery-bot/internal/http/middleware"
)

const serviceName = "image-delivery-bot"

// Options configures the health server.
type Options struct {
	Addr           string
	Debug          bool
	AllowedOrigins []string
	// Store is pinged by /ready; nil means the store is always considered ready.
	Store record.Pinger
	Log   zerolog.Logger
}

// NewRouter builds the gin engine serving the liveness and readiness endpoints.
func NewRouter(opts Options) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(mw.RequestID())
	router.Use(mw.Logger(opts.Log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) == 0 || (len(opts.AllowedOrigins) == 1 && opts.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/", func(c *gin.Context) {
		c.String(nethttp.StatusOK, "Bot is running!")
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(nethttp.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		if opts.Store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := opts.Store.Ping(ctx); err != nil {
				c.JSON(nethttp.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   "record store unavailable",
					"details": err.Error(),
				})
				return
			}
		}

		c.JSON(nethttp.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	return router
}

// NewServer wraps the router in an http.Server with the usual timeouts.
func NewServer(opts Options) *nethttp.Server {
	return &nethttp.Server{
		Addr:         opts.Addr,
		Handler:      NewRouter(opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down within timeout.
func Run(ctx context.Context, srv *nethttp.Server, timeout time.Duration, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
