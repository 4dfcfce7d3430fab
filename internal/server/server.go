// Package server is the HTTP ingress: route table, request decoding,
// and the mapping from pipeline errors to status codes.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/manak-ai/stratum/internal/apperr"
	"github.com/manak-ai/stratum/internal/model"
	"github.com/manak-ai/stratum/internal/service"
	"github.com/manak-ai/stratum/internal/tool"
)

// ServiceName is reported by the healthcheck and used as the event-bus
// message key.
const ServiceName = "stratum"

// Server holds the router and its collaborators.
type Server struct {
	engine    *gin.Engine
	container *service.Container
	registry  *tool.Registry
	log       *slog.Logger
}

func New(container *service.Container, registry *tool.Registry, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{engine: engine, container: container, registry: registry, log: log}

	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(s.accessLog())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	engine.GET("/", s.health)

	v1 := engine.Group("/api/v1")
	v1.POST("/document", s.addDocument)
	v1.POST("/document/overview/query", s.documentOverviewQuery)
	v1.POST("/document/chunk/query", s.documentChunkQuery)
	v1.POST("/repository", s.addRepository)
	v1.POST("/repository/overview/query", s.repositoryOverviewQuery)
	v1.POST("/repository/chunk/query", s.repositoryChunkQuery)
	v1.POST("/tool/invoke", s.invokeTool)

	return s
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", c.GetString("request_id")))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": ServiceName, "status": "UP"})
}

func (s *Server) addDocument(c *gin.Context) {
	var req model.DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	svc, err := s.container.Documents(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := svc.Add(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) addRepository(c *gin.Context) {
	var req model.RepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	svc, err := s.container.Repositories(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := svc.Add(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) documentOverviewQuery(c *gin.Context) {
	s.query(c, func(req model.QueryRequest) (any, error) {
		svc, err := s.container.Documents(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return svc.OverviewQuery(c.Request.Context(), req)
	})
}

func (s *Server) documentChunkQuery(c *gin.Context) {
	s.query(c, func(req model.QueryRequest) (any, error) {
		svc, err := s.container.Documents(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return svc.ChunkQuery(c.Request.Context(), req)
	})
}

func (s *Server) repositoryOverviewQuery(c *gin.Context) {
	s.query(c, func(req model.QueryRequest) (any, error) {
		svc, err := s.container.Repositories(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return svc.OverviewQuery(c.Request.Context(), req)
	})
}

func (s *Server) repositoryChunkQuery(c *gin.Context) {
	s.query(c, func(req model.QueryRequest) (any, error) {
		svc, err := s.container.Repositories(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return svc.ChunkQuery(c.Request.Context(), req)
	})
}

func (s *Server) query(c *gin.Context, run func(model.QueryRequest) (any, error)) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	resp, err := run(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) invokeTool(c *gin.Context) {
	var req model.InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if req.ToolID == "" {
		s.badRequest(c, apperr.Validation(apperr.CodeMissingToolID, "toolId must not be empty"))
		return
	}
	c.JSON(http.StatusOK, s.registry.Invoke(c.Request.Context(), req))
}

func (s *Server) badRequest(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	if code == "" {
		code = "BAD_REQUEST"
	}
	c.JSON(http.StatusBadRequest, model.ErrorResponse{Code: code, Message: err.Error()})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatusOf(err)
	code := apperr.CodeOf(err)
	if code == "" {
		code = apperr.CodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			slog.String("path", c.Request.URL.Path),
			slog.String("code", code),
			slog.String("error", err.Error()),
			slog.String("request_id", c.GetString("request_id")))
	}
	c.JSON(status, model.ErrorResponse{Code: code, Message: err.Error()})
}
