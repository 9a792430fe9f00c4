package app

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/openmesh-labs/identityhub/internal/handlers"
	"github.com/openmesh-labs/identityhub/internal/utils"
)

func wireRouter(cfg Config, handlerset Handlers, mw Middleware) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("identityhub-api"))

	origins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", nil), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	if cfg.AuthRequired {
		api.Use(mw.Auth.RequireAuth())
	}

	entities := api.Group("/entities/:id")
	{
		entities.POST("/merge", handlerset.Merge.Merge)
		entities.GET("/unmerge/preview", handlerset.Merge.UnmergePreview)
		entities.POST("/unmerge", handlerset.Merge.Unmerge)
		entities.GET("/can-revert-merge", handlerset.Merge.CanRevertMerge)
		entities.POST("/no-merge", handlerset.Merge.NoMergeAdd)
		entities.GET("/no-merge", handlerset.Merge.NoMergeList)
	}

	return router
}
