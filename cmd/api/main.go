package main

import (
	"context"
	"fmt"
	"log"

	common_api "go-cohort/internal/common/api"
	"go-cohort/internal/config"
	"go-cohort/internal/database"
	"go-cohort/internal/features/dataset"
	"go-cohort/internal/features/filestore"
	"go-cohort/internal/features/importjob"
	"go-cohort/internal/features/patient"
	"go-cohort/internal/logger"
	"go-cohort/internal/middleware"
	"go-cohort/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for _, route := range routes {
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			utils.SetSecret(cfg.JWTSecret)
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,

			// Repositories
			patient.NewPatientRepository,
			dataset.NewDatasetRepository,
			filestore.NewFileRepository,
			importjob.NewJobRepository,

			// Services
			patient.NewPatientService,
			dataset.NewDatasetService,
			filestore.NewFileService,
			importjob.NewImportService,
			importjob.NewEngine,
			importjob.NewMaintenance,

			// Engine collaborator contracts satisfied by the services
			func(s filestore.FileService) importjob.FileOpener { return s },
			func(s filestore.FileService) importjob.FilePruner { return s },
			func(s patient.PatientService) importjob.PatientStore { return s },
			func(s dataset.DatasetService) importjob.EntryStore { return s },

			// Controllers
			patient.NewPatientController,
			dataset.NewDatasetController,
			filestore.NewFileController,
			importjob.NewImportController,
			importjob.NewProgressController,

			// API Routes
			AsRoute(patient.NewPatientApi),
			AsRoute(dataset.NewDatasetApi),
			AsRoute(filestore.NewFileApi),
			AsRoute(importjob.NewImportApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, maintenance *importjob.Maintenance) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return maintenance.Start(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return maintenance.Stop()
					},
				})
			},
		),
	)

	app.Run()
}
