// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/mixplan/backend-go/internal/api/handlers"
	"github.com/andresuchdata/mixplan/backend-go/internal/api/middleware"
	"github.com/andresuchdata/mixplan/backend-go/internal/drive"
	"github.com/andresuchdata/mixplan/backend-go/internal/metrics"
	"github.com/andresuchdata/mixplan/backend-go/internal/service"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

type Services struct {
	Scenarios *service.ScenarioService
	Plans     *service.PlanService

	// Solver backs /solver/submit; nil disables the endpoint.
	Solver        *solver.Adapter
	SolverOptions solver.Options

	Metrics *metrics.Metrics
	Drive   *drive.Handler
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services == nil {
		return router
	}

	if services.Metrics != nil {
		router.GET("/metrics", gin.WrapH(services.Metrics.Handler()))
	}

	apiGroup := router.Group("/api/v1")

	if services.Scenarios != nil {
		scenarioHandler := handlers.NewScenarioHandler(services.Scenarios)
		scenarioGroup := apiGroup.Group("/scenarios")
		{
			scenarioGroup.POST("", scenarioHandler.CreateScenario)
			scenarioGroup.GET("", scenarioHandler.ListScenarios)
			scenarioGroup.GET("/:id", scenarioHandler.GetScenario)
			scenarioGroup.PUT("/:id", scenarioHandler.ReplaceScenario)
			scenarioGroup.DELETE("/:id", scenarioHandler.DeleteScenario)

			scenarioGroup.POST("/:id/products", scenarioHandler.AddProduct)
			scenarioGroup.PUT("/:id/products/:productId", scenarioHandler.UpdateProduct)
			scenarioGroup.DELETE("/:id/products/:productId", scenarioHandler.RemoveProduct)

			scenarioGroup.PUT("/:id/resources/:resourceId/capacity", scenarioHandler.UpdateCapacity)

			scenarioGroup.POST("/:id/constraints", scenarioHandler.AddConstraint)
			scenarioGroup.DELETE("/:id/constraints", scenarioHandler.ClearConstraints)
			scenarioGroup.DELETE("/:id/constraints/:constraintId", scenarioHandler.RemoveConstraint)
		}
	}

	if services.Plans != nil {
		planHandler := handlers.NewPlanHandler(services.Plans)
		apiGroup.POST("/scenarios/:id/precheck", planHandler.PrecheckScenario)
		apiGroup.POST("/scenarios/:id/solve", planHandler.SolveScenario)
		apiGroup.GET("/scenarios/:id/runs", planHandler.ListRuns)

		runGroup := apiGroup.Group("/runs")
		{
			runGroup.GET("/:runId", planHandler.GetRun)
			runGroup.GET("/:runId/export.csv", planHandler.ExportRun)
		}

		plansGroup := apiGroup.Group("/plans")
		{
			plansGroup.POST("/precheck", planHandler.PrecheckSnapshot)
			plansGroup.POST("/solve", planHandler.SolveSnapshot)
			plansGroup.DELETE("/cache", planHandler.ClearCache)
		}
	}

	if services.Solver != nil {
		solverHandler := handlers.NewSolverHandler(services.Solver, services.SolverOptions)
		apiGroup.POST("/solver/submit", solverHandler.Submit)
	}

	if services.Drive != nil {
		services.Drive.RegisterRoutes(apiGroup)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
