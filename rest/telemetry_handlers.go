package rest

import (
	"battery-log-api/db"
	"battery-log-api/render"
	"battery-log-api/telemetry"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler serves the ingestion and listing routes.
type Handler struct {
	service      *telemetry.Service
	renderer     *render.Renderer
	keyHeader    string
	renderLimit  int
	renderStream *db.Stream
	logger       *zap.Logger
}

// IngestHandler stores one record for ep.
func (h *Handler) IngestHandler(ep telemetry.Endpoint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, err := h.service.Ingest(c.UserContext(), ep, c.Body(), c.Get(h.keyHeader))
		if err != nil {
			return ReturnServiceError(c, err)
		}

		response := SaveLogResponse{
			Success: true,
			Message: "Log salvo",
		}

		return c.Status(fiber.StatusCreated).JSON(response)
	}
}

// VisualizarHandler renders the newest records as an HTML table.
func (h *Handler) VisualizarHandler(c *fiber.Ctx) error {
	stream, err := h.resolveStream(c)
	if err != nil {
		return ReturnServiceError(c, err)
	}

	records, err := h.service.ListRecent(c.UserContext(), stream, h.limit(c))
	if err != nil {
		return ReturnServiceError(c, err)
	}

	page, err := h.renderer.Render(stream, records)
	if err != nil {
		h.logger.Error("failed to render listing", zap.String("stream", stream.Name), zap.Error(err))
		return ReturnInternalError(c, msgInternal)
	}

	c.Type("html", "utf-8")
	return c.Send(page)
}

// ListRecordsHandler returns the newest records as JSON.
func (h *Handler) ListRecordsHandler(c *fiber.Ctx) error {
	stream, err := h.resolveStream(c)
	if err != nil {
		return ReturnServiceError(c, err)
	}

	records, err := h.service.ListRecent(c.UserContext(), stream, h.limit(c))
	if err != nil {
		return ReturnServiceError(c, err)
	}

	data := make([]RecordDetail, len(records))
	for i, rec := range records {
		data[i] = NewRecordDetail(stream, rec)
	}

	response := RecordsListResponse{
		Stream: stream.Name,
		Count:  len(data),
		Data:   data,
	}

	return c.JSON(response)
}

// resolveStream picks the :stream parameter, or the render stream when the
// route has none.
func (h *Handler) resolveStream(c *fiber.Ctx) (*db.Stream, error) {
	name := c.Params("stream")
	if name == "" {
		name = h.renderStream.Name
	}
	return h.service.Lookup(name)
}

func (h *Handler) limit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", h.renderLimit)
	if limit < 1 || limit > db.MaxListLimit {
		limit = db.MaxListLimit
	}
	return limit
}
