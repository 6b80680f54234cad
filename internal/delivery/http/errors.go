package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/locationprivacy/backend/internal/domain"
)

// ErrorHandler maps domain and fiber errors to JSON responses
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	body := fiber.Map{"error": true}

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.Is(err, domain.ErrInvalidParameter):
		code = fiber.StatusBadRequest
		message = err.Error()
		body["field"] = domain.FieldOf(err)
	case errors.Is(err, domain.ErrUnknownUser):
		code = fiber.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrInsufficientData):
		code = fiber.StatusUnprocessableEntity
		message = err.Error()
	}

	body["message"] = message
	return c.Status(code).JSON(body)
}
