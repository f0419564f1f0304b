// Package server exposes the UI command surface over HTTP and streams every
// emitted event to the UI as server-sent events.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hooolee/novel-splitter/ai"
	"github.com/Hooolee/novel-splitter/config"
	"github.com/Hooolee/novel-splitter/downloader"
	"github.com/Hooolee/novel-splitter/downloader/qidian"
	"github.com/Hooolee/novel-splitter/events"
	"github.com/Hooolee/novel-splitter/logger"
	"github.com/Hooolee/novel-splitter/metrics"
	"github.com/Hooolee/novel-splitter/model"
)

type DownloaderFactory func(platform model.Platform, opts downloader.Options) (model.Downloader, error)

type Deps struct {
	Config *config.Config
	Hub    *events.Hub
	// Renderer backs browser-routed platforms; nil disables them.
	Renderer      qidian.Renderer
	AI            *ai.Client
	NewDownloader DownloaderFactory
	Logger        *slog.Logger
}

type Server struct {
	cfg           *config.Config
	hub           *events.Hub
	renderer      qidian.Renderer
	ai            *ai.Client
	newDownloader DownloaderFactory
	logger        *slog.Logger
	queue         *Queue

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the download queue worker; Close stops it.
func New(deps Deps) *Server {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Hub == nil {
		deps.Hub = events.NewHub(0)
	}
	deps.Logger = logger.OrDefault(deps.Logger)
	if deps.AI == nil {
		deps.AI = ai.NewClient(ai.Options{Temperature: deps.Config.AI.Temperature, Logger: deps.Logger})
	}
	if deps.NewDownloader == nil {
		deps.NewDownloader = downloader.New
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:           deps.Config,
		hub:           deps.Hub,
		renderer:      deps.Renderer,
		ai:            deps.AI,
		newDownloader: deps.NewDownloader,
		logger:        deps.Logger,
		queue:         NewQueue(0, deps.Logger),
		ctx:           ctx,
		cancel:        cancel,
	}
	go s.queue.Run(ctx)
	return s
}

func (s *Server) Close() {
	s.cancel()
}

func (s *Server) Hub() *events.Hub {
	return s.hub
}

func (s *Server) Queue() *Queue {
	return s.queue
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), commandMetrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.Server.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "pending": s.queue.Pending()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/events", s.streamEvents)

	api.POST("/start_download", s.startDownload)
	api.POST("/scan_and_download_rank", s.scanAndDownloadRank)
	api.POST("/start_ai_analysis", s.startAiAnalysis)
	api.POST("/fetch_ai_models", s.fetchAiModels)
	api.POST("/update_novel_metadata", s.updateNovelMetadata)
	api.GET("/get_auto_analysis_prompt", s.getAutoAnalysisPrompt)
	api.GET("/get_file_tree", s.getFileTree)
	api.GET("/get_file_content", s.getFileContent)
	api.POST("/delete_novel", s.deleteNovel)
	api.POST("/delete_chapter", s.deleteChapter)
	api.POST("/export_chapter", s.exportChapter)
	api.GET("/read_log_file", s.readLogFile)
	api.POST("/clear_log", s.clearLog)
	api.POST("/ensure_workspace_dirs", s.ensureWorkspaceDirs)

	return r
}

// Run serves until ctx is done, then drains connections for up to 5s.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server: stopped")
	return nil
}

// streamEvents relays hub messages until the client disconnects.
func (s *Server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-s.ctx.Done():
			return false
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(msg.Name, msg.Payload)
			return true
		}
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/api/events" {
			return
		}
		s.logger.Debug("server: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func commandMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		full := c.FullPath()
		if path.Dir(full) != "/api" || full == "/api/events" {
			return
		}
		status := "ok"
		if c.Writer.Status() >= http.StatusBadRequest {
			status = "error"
		}
		metrics.CommandsTotal.WithLabelValues(path.Base(full), status).Inc()
	}
}
