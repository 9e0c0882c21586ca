package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/soltixdb/chunkfs/internal/handlers"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/middleware"
	"github.com/soltixdb/chunkfs/internal/services"
)

// Options configures the namenode app
type Options struct {
	Version   string
	BodyLimit int
	Metrics   *metrics.Metrics
}

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, files *services.FileService, namespace *services.NamespaceService, opts Options) *handlers.Handler {
	h := handlers.New(logger, files, namespace, opts.Version)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))
	app.Use(logging.FiberMiddlewareWithConfig(logger, logging.DefaultMiddlewareConfig()))

	app.Get("/health", h.Health)
	if opts.Metrics != nil {
		app.Get("/metrics", metrics.FiberHandler(opts.Metrics.Registry))
	}

	// Files
	app.Post("/upload_file", h.UploadFile)
	app.Post("/get_file", h.GetFile)
	app.Get("/get_info", h.GetInfo)

	// Namespace
	app.Post("/create_directory", h.CreateDirectory)
	app.Get("/get_directory", h.GetDirectory)
	app.Get("/list_directory", h.ListDirectory)
	app.Post("/move_file", h.MoveFile)
	app.Post("/copy_file", h.CopyFile)
	app.Post("/move_folder", h.MoveFolder)
	app.Post("/copy_folder", h.CopyFolder)
	app.Post("/delete_file", h.DeleteFile)
	app.Post("/delete_folder", h.DeleteFolder)

	// Cluster
	app.Get("/datanode_status", h.DatanodeStatus)
	app.Post("/re_replicate", h.ReReplicate)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, files *services.FileService, namespace *services.NamespaceService, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "chunkfs namenode",
		DisableStartupMessage: true,
		BodyLimit:             opts.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, files, namespace, opts)

	return app
}
