package web

import (
	"errors"

	"github.com/dukex/orderflow/pkg/services"
	"github.com/dukex/orderflow/pkg/validation"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// validationProblem is a 400 problem that lists every invalid field.
type validationProblem struct {
	*problems.DefaultProblem

	Errors validation.Errors `json:"errors,omitempty"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service layer errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		problem := validationProblem{
			DefaultProblem: problems.NewStatusProblem(400).
				WithInstance(c.Path()).
				WithType("validation_error").
				WithDetail(err.Error()),
		}

		var fields validation.Errors
		if errors.As(err, &fields) {
			problem.Detail = validation.ErrInvalidWorkflow.Error()
			problem.Errors = fields
		}

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case services.IsUnauthorizedError(err):
		problem := problems.NewStatusProblem(401).
			WithInstance(c.Path()).
			WithType("unauthorized").
			WithDetail("missing or invalid " + webhookSecretHeader + " header")

		return c.Status(fiber.StatusUnauthorized).JSON(problem)

	case services.IsNotFoundError(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType(notFoundType(err)).
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		return internalError(c, err)
	}
}

func notFoundType(err error) string {
	switch {
	case errors.Is(err, services.ErrWorkflowNotFound):
		return "workflow_not_found"
	case errors.Is(err, services.ErrExecutionNotFound):
		return "execution_not_found"
	case errors.Is(err, services.ErrWebhookNotFound):
		return "webhook_not_found"
	default:
		return "not_found"
	}
}
