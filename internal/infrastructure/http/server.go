// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/0xcro3dile/policyqa-go/internal/domain/ports"
	"github.com/0xcro3dile/policyqa-go/internal/domain/usecases"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Options configures the listener.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP server for the policy viewer and the ask API.
type Server struct {
	ask    *usecases.AskUseCase
	docs   *usecases.DocumentUseCase
	docSrc ports.DocumentSource
	chunks ports.ChunkSource
	site   *usecases.SiteAccess
	logger *zap.Logger
	opts   Options
	engine *gin.Engine
}

// NewServer wires the routes. site may be nil for a public site.
func NewServer(
	ask *usecases.AskUseCase,
	docSrc ports.DocumentSource,
	chunks ports.ChunkSource,
	site *usecases.SiteAccess,
	opts Options,
	logger *zap.Logger,
) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if site == nil {
		site = usecases.NewSiteAccess("")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		// Generation can take a while.
		opts.WriteTimeout = 150 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		ask:    ask,
		docs:   usecases.NewDocumentUseCase(docSrc),
		docSrc: docSrc,
		chunks: chunks,
		site:   site,
		logger: logger,
		opts:   opts,
	}

	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.Use(
		recovery(logger),
		requestID(),
		accessLog(logger),
		s.siteGate(),
	)
	if err := s.routes(engine); err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

func (s *Server) routes(r *gin.Engine) error {
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("mounting static files: %w", err)
	}
	r.StaticFS("/static", http.FS(staticContent))

	// UI
	r.GET("/", s.handleIndex)
	r.GET("/sections/:id", s.handleSection)

	// Raw assets
	r.GET("/policy.json", s.handlePolicyAsset)
	r.GET("/chunks.json", s.handleChunksAsset)

	// API
	api := r.Group("/api")
	api.GET("/ask", s.handleAskStatus)
	api.POST("/ask", s.handleAsk)

	// Site access
	r.GET("/unlock", s.handleUnlockHint)
	r.POST("/unlock", s.handleUnlock)
	r.GET("/logout", s.handleLogout)
	r.POST("/logout", s.handleLogout)

	r.GET("/healthz", s.handleHealth)
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	s.logger.Info("policyqa server starting",
		zap.String("addr", s.opts.Addr),
		zap.Bool("site_locked", s.site.Enabled()),
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown failed", zap.Error(err))
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("policyqa server stopped")
	return nil
}

// handleHealth returns server health status.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
