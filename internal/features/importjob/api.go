package importjob

import (
	"go-cohort/internal/config"
	"go-cohort/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type ImportApi struct {
	ImportController   *ImportController
	ProgressController *ProgressController
	Config             *config.Config
}

func NewImportApi(importController *ImportController, progressController *ProgressController, config *config.Config) *ImportApi {
	return &ImportApi{
		ImportController:   importController,
		ProgressController: progressController,
		Config:             config,
	}
}

func (api *ImportApi) Setup(app *fiber.App) {
	group := app.Group("/api/import", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Post("/preview", api.ImportController.Preview)
	group.Post("/jobs", api.ImportController.CreateJob)
	group.Get("/jobs", api.ImportController.ListJobs)
	group.Get("/jobs/:id", api.ImportController.GetJob)
	group.Put("/jobs/:id", api.ImportController.UpdateJob)
	group.Post("/jobs/:id/pause", api.ImportController.PauseJob)
	group.Post("/jobs/:id/resume", api.ImportController.ResumeJob)
	group.Post("/jobs/:id/cancel", api.ImportController.CancelJob)

	group.Get("/jobs/:id/ws", websocket.New(api.ProgressController.HandleProgress))
}
