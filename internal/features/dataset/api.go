package dataset

import (
	"go-cohort/internal/config"
	"go-cohort/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DatasetApi struct {
	DatasetController *DatasetController
	Config            *config.Config
}

func NewDatasetApi(datasetController *DatasetController, config *config.Config) *DatasetApi {
	return &DatasetApi{
		DatasetController: datasetController,
		Config:            config,
	}
}

func (api *DatasetApi) Setup(app *fiber.App) {
	group := app.Group("/api/datasets", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Post("/", api.DatasetController.CreateDataset)
	group.Get("/", api.DatasetController.ListDatasets)
	group.Get("/:id", api.DatasetController.GetDataset)
	group.Put("/:id", api.DatasetController.UpdateDataset)
	group.Delete("/:id", api.DatasetController.DeleteDataset)

	group.Post("/:id/variables", api.DatasetController.CreateVariable)
	group.Get("/:id/variables", api.DatasetController.ListVariables)
	group.Get("/:id/entries", api.DatasetController.ListEntries)
	group.Get("/:id/template", api.DatasetController.DownloadTemplate)
}
