package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"quizcoach-backend/cmd/app/internal/controller"
	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/observability"
	"quizcoach-backend/internal/tools"
	"quizcoach-backend/pkg/middleware"
	"quizcoach-backend/utilities"
)

const sessionSweepInterval = 5 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the MCP endpoint mounted at /mcp",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the quiz tools over stdio",
	Long: `mcp speaks the Model Context Protocol on stdin/stdout so an assistant
can drive practice and assessments directly. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		conn, err := db.Open(cfg, logger)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}
		logger.Info("schema migrated", "driver", cfg.DB.Driver)
		return nil
	},
}

func runServe(cmd *cobra.Command, _ []string) error {
	printStartUpBanner()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitOTel(ctx, logger, cfg.Tracing, observability.Options{Version: tools.Version})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	mcpServer := tools.NewServer(tools.NewHandlers(app.quiz, app.assessments, app.progress, logger))
	mcpHTTP := server.NewStreamableHTTPServer(mcpServer)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Context.Host, cfg.Context.Port),
		Handler:           newRouter(app, mcpHTTP),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr, "token_auth", cfg.Authentication.EnableTokenAuth)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Context.ShutdownTimeout)*time.Second)
		defer cancel()
		logger.Info("shutting down")
		if err := mcpHTTP.Shutdown(sctx); err != nil {
			logger.Warn("mcp shutdown", "error", err)
		}
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		return app.sweepSessions(gctx, sessionSweepInterval)
	})
	return g.Wait()
}

func newRouter(app *application, mcpHandler http.Handler) *gin.Engine {
	if utilities.IsProd(app.cfg.Logging.Mode) {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(app.cfg.Tracing.ServiceName))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", utilities.HeaderUserID, "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Mcp-Session-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.AccessLog(app.log))
	if app.cfg.RequestDump {
		r.Use(middleware.RequestDumpMiddleware(app.log))
	}
	r.Use(utilities.AuthMiddleware(app.cfg.Authentication.EnableTokenAuth))
	r.Use(utilities.RateLimitMiddleware(utilities.NewRateLimiter(app.cfg.RateLimit)))

	controller.RegisterRoutes(r, controller.Services{
		Quiz:        app.quiz,
		Assessments: app.assessments,
		Progress:    app.progress,
		MCP:         mcpHandler,
		Log:         app.log,
		PageSize:    app.cfg.Pagination.PageSize,
	})
	return r
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitOTel(ctx, logger, cfg.Tracing, observability.Options{Version: tools.Version})
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("serving tools on stdio")
	return server.ServeStdio(tools.NewServer(tools.NewHandlers(app.quiz, app.assessments, app.progress, logger)))
}
