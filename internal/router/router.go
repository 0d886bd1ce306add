package router

import (
	"github.com/gin-gonic/gin"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/api"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/middleware"
)

// SetupRouter builds the gin engine with the shared middleware chain and every API route
func SetupRouter(cfg *config.Config, deps api.Dependencies) *gin.Engine {
	if config.GetEnvironment() == config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	api.RegisterRoutes(router, deps)
	return router
}
