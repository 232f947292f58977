package filestore

import (
	"go-cohort/internal/config"
	"go-cohort/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type FileApi struct {
	FileController *FileController
	Config         *config.Config
}

func NewFileApi(fileController *FileController, config *config.Config) *FileApi {
	return &FileApi{
		FileController: fileController,
		Config:         config,
	}
}

func (api *FileApi) Setup(app *fiber.App) {
	group := app.Group("/api/files", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Post("/", api.FileController.UploadFile)
	group.Get("/:reference", api.FileController.GetFile)
	group.Get("/:reference/download", api.FileController.DownloadFile)
	group.Delete("/:reference", api.FileController.DeleteFile)
}
