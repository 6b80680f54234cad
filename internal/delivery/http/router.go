package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, privacySvc *service.PrivacyService, gatherer prometheus.Gatherer) {
	handler := NewHandler(privacySvc)

	// Health check
	app.Get("/health", handler.HealthCheck)

	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	{
		api.Get("/generate-dataset", handler.GenerateDataset)
		api.Post("/calculate-risk", handler.CalculateRisk)
		api.Post("/calculate-risk/:user_id", handler.CalculateUserRisk)

		// Anonymization endpoints
		api.Post("/anonymize", handler.Anonymize)
		api.Post("/anonymize/k-anonymity", handler.AnonymizeWith(domain.TechniqueKAnonymity))
		api.Post("/anonymize/spatial-cloaking", handler.AnonymizeWith(domain.TechniqueSpatialCloaking))
		api.Post("/anonymize/differential-privacy", handler.AnonymizeWith(domain.TechniqueDifferentialPrivacy))

		api.Post("/identify-patterns/:user_id", handler.IdentifyPatterns)
		api.Post("/compare-privacy", handler.ComparePrivacy)

		api.Get("/runs", handler.GetRecentRuns)
		api.Get("/presets", handler.GetPresets)
	}
}
