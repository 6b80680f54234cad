package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/internal/service"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// Handler contains all HTTP handlers
type Handler struct {
	privacySvc *service.PrivacyService
}

// NewHandler creates a new handler
func NewHandler(privacySvc *service.PrivacyService) *Handler {
	return &Handler{privacySvc: privacySvc}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	storage := "ok"
	if err := h.privacySvc.Health(c.Context()); err != nil {
		storage = "unavailable"
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "location-privacy-backend",
		"version": "1.0.0",
		"storage": storage,
	})
}

// GenerateDataset returns the cached synthetic dataset or a fresh one
func (h *Handler) GenerateDataset(c *fiber.Ctx) error {
	numUsers, err := parseNumUsers(c.Query("num_users"))
	if err != nil {
		return err
	}

	ds, err := h.privacySvc.Generate(c.Context(), numUsers, c.QueryBool("refresh", false))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    ds,
	})
}

// CalculateRisk scores every user of the posted dataset
func (h *Handler) CalculateRisk(c *fiber.Ctx) error {
	ds, err := parseDataset(c)
	if err != nil {
		return err
	}

	scores, err := h.privacySvc.CalculateRisk(c.Context(), ds)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"data":      scores,
		"aggregate": service.Aggregate(scores),
	})
}

// CalculateUserRisk scores one user of the posted dataset
func (h *Handler) CalculateUserRisk(c *fiber.Ctx) error {
	ds, err := parseDataset(c)
	if err != nil {
		return err
	}

	score, err := h.privacySvc.CalculateUserRisk(c.Context(), ds, c.Params("user_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    score,
	})
}

type anonymizeRequest struct {
	Dataset      *domain.Dataset    `json:"dataset"`
	Technique    string             `json:"technique"`
	Parameters   map[string]float64 `json:"parameters"`
	K            *float64           `json:"k"`
	RadiusMeters *float64           `json:"radius_meters"`
	Epsilon      *float64           `json:"epsilon"`
}

// value returns the technique parameter from the flat body field, falling
// back to the parameters map and then the preset default
func (r anonymizeRequest) value(t domain.Technique) float64 {
	rng := t.Range()
	var flat *float64
	switch t {
	case domain.TechniqueKAnonymity:
		flat = r.K
	case domain.TechniqueSpatialCloaking:
		flat = r.RadiusMeters
	case domain.TechniqueDifferentialPrivacy:
		flat = r.Epsilon
	}
	if flat != nil {
		return *flat
	}
	if v, ok := r.Parameters[rng.Name]; ok {
		return v
	}
	return rng.Default
}

// AnonymizeWith builds a handler for one fixed technique
func (h *Handler) AnonymizeWith(t domain.Technique) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req anonymizeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		params := map[string]float64{t.Range().Name: req.value(t)}
		return h.anonymize(c, req.Dataset, string(t), params)
	}
}

// Anonymize applies the technique named in the request body
func (h *Handler) Anonymize(c *fiber.Ctx) error {
	var req anonymizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return h.anonymize(c, req.Dataset, req.Technique, req.Parameters)
}

func (h *Handler) anonymize(c *fiber.Ctx, ds *domain.Dataset, technique string, params map[string]float64) error {
	result, err := h.privacySvc.Anonymize(c.Context(), ds, technique, params)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// IdentifyPatterns returns inferred places and unique patterns of one user
func (h *Handler) IdentifyPatterns(c *fiber.Ctx) error {
	ds, err := parseDataset(c)
	if err != nil {
		return err
	}

	result, err := h.privacySvc.IdentifyPatterns(c.Context(), ds, c.Params("user_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

type compareRequest struct {
	OriginalDataset   *domain.Dataset    `json:"original_dataset"`
	AnonymizedDataset *domain.Dataset    `json:"anonymized_dataset"`
	Technique         string             `json:"technique"`
	Parameters        map[string]float64 `json:"parameters"`
}

// ComparePrivacy reports risk reduction and distortion between two datasets
func (h *Handler) ComparePrivacy(c *fiber.Ctx) error {
	var req compareRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	technique := c.Query("technique", req.Technique)

	result, err := h.privacySvc.ComparePrivacy(c.Context(), req.OriginalDataset, req.AnonymizedDataset, technique, req.Parameters)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// GetRecentRuns returns the newest anonymization and comparison runs
func (h *Handler) GetRecentRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultRunsLimit)
	if limit < 1 || limit > maxRunsLimit {
		limit = defaultRunsLimit
	}

	runs, err := h.privacySvc.RecentRuns(c.Context(), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch analysis runs")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    runs,
		"count":   len(runs),
	})
}

// GetPresets lists the accepted parameter range of each technique
func (h *Handler) GetPresets(c *fiber.Ctx) error {
	presets := fiber.Map{}
	for _, t := range []domain.Technique{
		domain.TechniqueKAnonymity,
		domain.TechniqueSpatialCloaking,
		domain.TechniqueDifferentialPrivacy,
	} {
		presets[string(t)] = t.Range()
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    presets,
	})
}

// parseNumUsers reads the optional num_users query value; empty means auto
func parseNumUsers(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: "num_users", Message: "must be an integer"}
	}
	return n, nil
}

func parseDataset(c *fiber.Ctx) (*domain.Dataset, error) {
	var ds domain.Dataset
	if err := c.BodyParser(&ds); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return &ds, nil
}
