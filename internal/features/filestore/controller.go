package filestore

import (
	"github.com/gofiber/fiber/v2"
)

type FileController struct {
	FileService FileService
}

func NewFileController(fileService FileService) *FileController {
	return &FileController{
		FileService: fileService,
	}
}

func (c *FileController) UploadFile(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to open file"})
	}
	defer file.Close()

	uploadedBy, _ := ctx.Locals("user_id").(string)
	contentType := fileHeader.Header.Get("Content-Type")

	stored, err := c.FileService.Save(ctx.UserContext(), file, fileHeader.Filename, contentType, uploadedBy)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(stored)
}

func (c *FileController) GetFile(ctx *fiber.Ctx) error {
	reference := ctx.Params("reference")

	stored, err := c.FileService.Get(ctx.UserContext(), reference)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "File not found"})
	}

	return ctx.JSON(stored)
}

func (c *FileController) DownloadFile(ctx *fiber.Ctx) error {
	reference := ctx.Params("reference")

	stored, err := c.FileService.Get(ctx.UserContext(), reference)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "File not found"})
	}

	return ctx.Download(stored.StoragePath, stored.OriginalName)
}

func (c *FileController) DeleteFile(ctx *fiber.Ctx) error {
	reference := ctx.Params("reference")

	if err := c.FileService.Delete(ctx.UserContext(), reference); err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "File not found"})
	}

	return ctx.JSON(fiber.Map{"message": "File deleted"})
}
