package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kelas-go-api/internal/service"
	"github.com/noah-isme/kelas-go-api/internal/utils"
)

// AnalyticsHandler exposes the course submission summary.
type AnalyticsHandler struct {
	service service.AnalyticsService
	logger  zerolog.Logger
}

// NewAnalyticsHandler builds an analytics handler instance.
func NewAnalyticsHandler(service service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register attaches the routes to the course-scoped group.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/:id/analytics", h.courseSummary)
}

func (h *AnalyticsHandler) courseSummary(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.CourseSummary(c.Context(), actorFromContext(c), courseID)
	if err != nil {
		if isInternal(err) {
			h.logger.Error().Err(err).Msg("internal server error")
		}
		return respondServiceError(c, err)
	}

	return utils.SendSuccess(c, "course analytics generated", summary)
}
