// Package httpx holds the response envelope and request helpers shared by the
// API handlers. Every response body is a JSON object with a "success" flag.
package httpx

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// InternalError carries a storage or server failure. The cause is logged and
// only Message is sent to the client.
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error { return e.Err }

func Internal(err error, message string) error {
	return &InternalError{Message: message, Err: err}
}

// OK writes a 200 success envelope merged with payload.
func OK(c *fiber.Ctx, payload fiber.Map) error {
	return c.JSON(envelope(payload))
}

// Created writes a 201 success envelope merged with payload.
func Created(c *fiber.Ctx, payload fiber.Map) error {
	return c.Status(fiber.StatusCreated).JSON(envelope(payload))
}

func envelope(payload fiber.Map) fiber.Map {
	body := fiber.Map{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	return body
}

// ErrorHandler renders every error returned by a handler as
// {"success": false, "error": ...}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			fe *fiber.Error
			ve *ValidationError
			ie *InternalError
		)
		switch {
		case errors.As(err, &ve):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   ve.Message,
				"details": ve.Details,
			})
		case errors.As(err, &fe):
			return c.Status(fe.Code).JSON(fiber.Map{
				"success": false,
				"error":   fe.Message,
			})
		case errors.As(err, &ie):
			log.Error(ie.Message,
				zap.Error(ie.Err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   ie.Message,
			})
		}

		log.Error("unexpected error", zap.Error(err), zap.String("path", c.Path()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Internal server error",
		})
	}
}

// ParamID parses a positive integer route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}
