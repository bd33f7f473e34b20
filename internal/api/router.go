package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/timmy/kinflick/internal/api/handler"
	"github.com/timmy/kinflick/internal/api/middleware"
	"github.com/timmy/kinflick/internal/config"
	"github.com/timmy/kinflick/internal/logger"
	"github.com/timmy/kinflick/internal/metrics"
)

// Dependencies holds everything the router wires into handlers.
type Dependencies struct {
	Photos  handler.PhotoService
	Diaries handler.DiaryService
	Ping    func(ctx context.Context) error
	Metrics *metrics.Metrics
	Logger  *logger.Logger

	// UploadsPath and UploadsDir serve locally stored photos; empty disables it.
	UploadsPath string
	UploadsDir  string
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *Dependencies, cfg *config.Config) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(cfg.Server.CORS))
	r.Use(middleware.Metrics(deps.Metrics))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.Ping)
	photoHandler := handler.NewPhotoHandler(deps.Photos)
	diaryHandler := handler.NewDiaryHandler(deps.Diaries)

	// Health check
	r.GET("/health", healthHandler.Health)

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}

	if deps.UploadsPath != "" && deps.UploadsDir != "" {
		r.Static(deps.UploadsPath, deps.UploadsDir)
	}

	// API v1 routes
	v1 := r.Group("/api/v1", middleware.RequireUser())
	{
		// Photos
		v1.POST("/photos/upload", photoHandler.Upload)
		v1.GET("/photos", photoHandler.List)
		v1.DELETE("/photos/:id", photoHandler.Delete)

		// Diary pages
		v1.POST("/diary", diaryHandler.Create)
		v1.POST("/diary/stream", diaryHandler.Stream)
		v1.GET("/diary", diaryHandler.List)
		v1.GET("/diary/:id", diaryHandler.Get)
		v1.DELETE("/diary/:id", diaryHandler.Delete)
	}

	return r
}
