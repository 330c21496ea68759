package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumenmedia/dvdstore/internal/cache"
	"github.com/lumenmedia/dvdstore/internal/catalog"
	"github.com/lumenmedia/dvdstore/internal/replication"
)

const defaultCacheTTL = time.Hour

var (
	errMissingCatalog   = errors.New("catalog service dependency required")
	errMissingPublisher = errors.New("replication publisher dependency required")
	errMissingCache     = errors.New("read cache dependency required")
)

// Dependencies carries the collaborators the HTTP surface orchestrates.
type Dependencies struct {
	Catalog   *catalog.Service
	Publisher *replication.Publisher
	Cache     cache.Cache
	CacheTTL  time.Duration
	Logger    *zap.Logger
}

// NewHTTPHandler wires the CRUD routes for dvds and directors.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Catalog == nil {
		return nil, errMissingCatalog
	}
	if deps.Publisher == nil {
		return nil, errMissingPublisher
	}
	if deps.Cache == nil {
		return nil, errMissingCache
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		catalog:   deps.Catalog,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		cacheTTL:  ttl,
		logger:    logger,
	}

	router.POST("/dvds", handler.handleCreateDVD)
	router.GET("/dvds", handler.handleListDVDs)
	router.GET("/dvds/:id", handler.handleGetDVD)
	router.PUT("/dvds/:id", handler.handleUpdateDVD)
	router.DELETE("/dvds/:id", handler.handleDeleteDVD)

	router.POST("/directors", handler.handleCreateDirector)
	router.GET("/directors", handler.handleListDirectors)
	router.GET("/directors/:id", handler.handleGetDirector)
	router.PUT("/directors/:id", handler.handleUpdateDirector)
	router.DELETE("/directors/:id", handler.handleDeleteDirector)

	return router, nil
}

type httpHandler struct {
	catalog   *catalog.Service
	publisher *replication.Publisher
	cache     cache.Cache
	cacheTTL  time.Duration
	logger    *zap.Logger
}
