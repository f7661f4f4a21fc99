package approuters

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Livestream/internal/auth"
	"Livestream/internal/configuration"

	"github.com/dustin/go-humanize"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func StartServer(container *configuration.Container) {
	logger := container.Logger
	cfg := container.Config

	socketServer := createSocketServer(container)
	appServer := createAppServer(container)

	// Channel to listen for errors from servers
	serverErrors := make(chan error, 2)

	// Start socket server
	go func() {
		logger.Info("Socket server starting",
			zap.String("url", fmt.Sprintf("ws://localhost:%d/%s", cfg.Server.SocketPort, cfg.Server.SocketRoute)),
			zap.String("maxFrame", humanize.IBytes(uint64(cfg.Chat.MaxFrameSize))),
			zap.Int("sendBuffer", cfg.Chat.SendBufferSize))
		if err := socketServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("socket server error: %w", err)
		}
	}()

	// Start application server
	go func() {
		logger.Info("Application server starting",
			zap.String("url", fmt.Sprintf("http://localhost:%d", cfg.Server.AppPort)),
			zap.String("store", cfg.Store))
		if err := appServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("app server error: %w", err)
		}
	}()

	// Listen for shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		logger.Error("Server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("Initiating graceful shutdown", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown sequence
	logger.Info("Stopping gateway and closing all WebSocket connections")
	container.Gateway.Stop()

	if err := socketServer.Shutdown(ctx); err != nil {
		logger.Error("Socket server shutdown error", zap.Error(err))
	}
	if err := appServer.Shutdown(ctx); err != nil {
		logger.Error("App server shutdown error", zap.Error(err))
	}

	logger.Info("Graceful shutdown complete")
}

// createSocketServer serves the websocket endpoint. Read and write deadlines
// are managed per connection by the gateway.
func createSocketServer(container *configuration.Container) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+container.Config.Server.SocketRoute, container.Gateway.ServeWS)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", container.Config.Server.SocketPort),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func createAppServer(container *configuration.Container) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", container.Config.Server.AppPort),
		Handler:      NewRouter(container),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewRouter builds the pull API.
func NewRouter(container *configuration.Container) *gin.Engine {
	if !container.Config.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	origins := container.Config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:4200"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to Livestream Application Server!",
		})
	})

	MonitorRouters(router, container)

	api := router.Group("/api", auth.Middleware(container.Verifier))
	ConversationRouters(api, container)
	MessageRouters(api, container)
	NotificationRouters(api, container)
	PresenceRouters(api, container)

	return router
}
