// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dashboard

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in the envelope.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeInvalidYear        = "INVALID_YEAR"
	CodeInvalidCountry     = "INVALID_COUNTRY"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes the error envelope. message must not carry internal
// details.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestID(c),
		Error:     errorEnvelope{Code: code, Message: message},
	})
}

// ErrorHandler maps errors escaping handlers onto the envelope.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, CodeBadRequest, "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, CodeNotFound, "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, CodeMethodNotAllowed, "method not allowed")
		default:
			return writeError(c, status, CodeInternal, "internal server error")
		}
	}
}
