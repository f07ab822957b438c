package rest

import (
	"battery-log-api/telemetry"

	"github.com/gofiber/fiber/v2"
)

const (
	msgUnauthorized     = "Nao autorizado"
	msgMalformedJSON    = "JSON mal formatado"
	msgStoreUnavailable = "Falha na conexao com DB"
	msgInternal         = "Erro interno do servidor"
	msgUnknownStream    = "Stream desconhecido"
)

func ReturnBadRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}

func ReturnUnauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": message,
	})
}

func ReturnNotFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": message,
	})
}

func ReturnInternalError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": message,
	})
}

// ReturnServiceError maps a telemetry error kind onto its status code. Store
// error text stays in the logs.
func ReturnServiceError(c *fiber.Ctx, err error) error {
	switch telemetry.KindOf(err) {
	case telemetry.KindAuth:
		return ReturnUnauthorized(c, msgUnauthorized)
	case telemetry.KindValidation:
		return ReturnBadRequest(c, msgMalformedJSON)
	case telemetry.KindNotFound:
		return ReturnNotFound(c, msgUnknownStream)
	case telemetry.KindStoreUnavailable:
		return ReturnInternalError(c, msgStoreUnavailable)
	default:
		return ReturnInternalError(c, msgInternal)
	}
}
