package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/kelas-go-api/internal/service"
	"github.com/noah-isme/kelas-go-api/internal/utils"
)

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Domain-rule refusals keep their message so clients can explain the refusal.
func respondServiceError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotOwner),
		errors.Is(err, service.ErrResubmissionNotAllowed):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrContentRequired),
		errors.Is(err, service.ErrScoreOutOfRange),
		errors.Is(err, service.ErrUploadTooLarge),
		errors.Is(err, service.ErrUploadTypeNotAllowed),
		errors.Is(err, service.ErrUploadScanFailed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDeadlinePassed),
		errors.Is(err, service.ErrResubmissionLimit),
		errors.Is(err, service.ErrResubmissionWindowClosed),
		errors.Is(err, service.ErrAssignmentUnpublished),
		errors.Is(err, service.ErrNotGraded):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrVersionConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrStorageFailure):
		return utils.SendError(c, fiber.StatusBadGateway, service.ErrStorageFailure.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func isInternal(err error) bool {
	var validationErrors validator.ValidationErrors
	known := []error{
		service.ErrAssignmentNotFound,
		service.ErrSubmissionNotFound,
		service.ErrNotOwner,
		service.ErrResubmissionNotAllowed,
		service.ErrContentRequired,
		service.ErrScoreOutOfRange,
		service.ErrUploadTooLarge,
		service.ErrUploadTypeNotAllowed,
		service.ErrUploadScanFailed,
		service.ErrDeadlinePassed,
		service.ErrResubmissionLimit,
		service.ErrResubmissionWindowClosed,
		service.ErrAssignmentUnpublished,
		service.ErrNotGraded,
		service.ErrVersionConflict,
		service.ErrStorageFailure,
	}
	for _, candidate := range known {
		if errors.Is(err, candidate) {
			return false
		}
	}
	return !errors.As(err, &validationErrors)
}
