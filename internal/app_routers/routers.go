package app_routers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Kaupa/internal/configuration"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Run starts the two HTTP servers (websocket and application) and blocks
// until a termination signal arrives, then drains both gracefully.
func Run(c *configuration.Container) error {
	gin.SetMode(gin.ReleaseMode)

	wsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Config.Server.WsPort),
		Handler: buildWsEngine(c),
	}
	appServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Config.Server.AppPort),
		Handler: buildAppEngine(c),
	}

	errCh := make(chan error, 2)

	go func() {
		c.Logger.Info("websocket server listening", zap.String("addr", wsServer.Addr))
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("websocket server: %w", err)
		}
	}()
	go func() {
		c.Logger.Info("application server listening", zap.String("addr", appServer.Addr))
		if err := appServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("application server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		c.Logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := wsServer.Shutdown(ctx); err != nil {
		c.Logger.Warn("websocket server shutdown failed", zap.Error(err))
	}
	if err := appServer.Shutdown(ctx); err != nil {
		c.Logger.Warn("application server shutdown failed", zap.Error(err))
	}

	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

func buildWsEngine(c *configuration.Container) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	engine.GET("/ws", c.WsHandler.Serve)
	return engine
}

func buildAppEngine(c *configuration.Container) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	RegisterMonitorRoutes(engine, c)
	RegisterChatRoutes(engine, c)
	return engine
}
