package rest

import (
	"errors"

	"battery-log-api/config"
	"battery-log-api/db"
	"battery-log-api/metrics"
	"battery-log-api/render"
	"battery-log-api/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const healthMessage = "API de Log de Baterias está online."

type Options struct {
	Config   *config.Config
	Service  *telemetry.Service
	Renderer *render.Renderer
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewApp builds the fiber app with middleware and every route registered.
func NewApp(opts Options) (*fiber.App, error) {
	if opts.Config == nil || opts.Service == nil {
		return nil, errors.New("rest: config and service are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(nil)
	}

	app := fiber.New(fiber.Config{
		AppName:               "battery-log-api",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(requestLogger(opts.Logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, " + opts.Config.Auth.Header,
		AllowMethods: "GET, POST, OPTIONS",
	}))

	if err := Init(app, opts); err != nil {
		return nil, err
	}
	return app, nil
}

// Init registers the routes described by opts.Config.
func Init(app *fiber.App, opts Options) error {
	cfg := opts.Config

	h := &Handler{
		service:     opts.Service,
		renderer:    opts.Renderer,
		keyHeader:   cfg.Auth.Header,
		renderLimit: cfg.Render.Limit,
		logger:      opts.Logger.With(zap.String("component", "rest")),
	}

	SetupSwagger(app)

	app.Get("/", HealthHandler)

	for _, ep := range cfg.Endpoints {
		stream, ok := db.LookupStream(ep.Stream)
		if !ok {
			return errors.New("rest: unknown stream " + ep.Stream)
		}

		endpoint := telemetry.Endpoint{Stream: stream, RequireAPIKey: ep.RequireAPIKey}
		for _, path := range ep.Paths {
			app.Post(path, h.IngestHandler(endpoint))
		}
	}

	renderStream, ok := db.LookupStream(cfg.Render.Stream)
	if !ok {
		return errors.New("rest: unknown render stream " + cfg.Render.Stream)
	}
	h.renderStream = renderStream

	app.Get("/visualizar", h.VisualizarHandler)
	app.Get("/visualizar/:stream", h.VisualizarHandler)
	app.Get("/api/records/:stream", h.ListRecordsHandler)

	if cfg.Metrics.Enabled && opts.Gatherer != nil {
		app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(metrics.Handler(opts.Gatherer)))
	}

	h.logger.Info("REST API routes registered", zap.Int("endpoints", len(cfg.Endpoints)))
	return nil
}

func HealthHandler(c *fiber.Ctx) error {
	return c.SendString(healthMessage)
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		logger.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
		return ReturnInternalError(c, msgInternal)
	}
}
