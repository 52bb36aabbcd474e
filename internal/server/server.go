// Package server exposes the ingestion and retrieval pipelines over
// HTTP for the web UI.
package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codemind/codemind/internal/chunker"
	"github.com/codemind/codemind/internal/config"
	"github.com/codemind/codemind/internal/ingest"
	"github.com/codemind/codemind/internal/rag"
	"github.com/codemind/codemind/internal/store"
)

// Server holds the handler dependencies. One ingestion runs at a time;
// the stores give no consistency guarantee under concurrent runs.
type Server struct {
	cfg      *config.Config
	pipeline *ingest.Pipeline
	rag      *rag.Pipeline
	chunker  *chunker.Chunker
	chat     *store.ChatStore
	log      *zap.Logger

	ingestMu sync.Mutex
}

// New creates a server around the pipelines.
func New(cfg *config.Config, pipeline *ingest.Pipeline, ragPipeline *rag.Pipeline, ck *chunker.Chunker, chat *store.ChatStore, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		rag:      ragPipeline,
		chunker:  ck,
		chat:     chat,
		log:      log,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORS(s.cfg.Server.CORSOrigins))

	router.GET("/", s.handleRoot)

	router.POST("/scan/preview", s.handleScanPreview)
	router.POST("/scan/test-parser", s.handleTestParser)

	router.POST("/ingest", s.handleIngest)
	router.GET("/ingest/stream", s.handleIngestStream)

	router.POST("/chat", s.handleChat)
	router.GET("/history/:user_id", s.handleSessions)
	router.GET("/history/messages/:session_id", s.handleMessages)

	router.GET("/files", s.handleFiles)

	return router
}

// Run serves HTTP on the configured listen address until the listener
// fails.
func (s *Server) Run() error {
	s.log.Info("http server listening", zap.String("addr", s.cfg.Server.Listen))
	return s.Router().Run(s.cfg.Server.Listen)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "online"})
}
