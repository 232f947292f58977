package importjob

import (
	"strconv"

	"go-cohort/internal/features/dataset"

	"github.com/gofiber/fiber/v2"
)

type ImportController struct {
	ImportService ImportService
}

func NewImportController(importService ImportService) *ImportController {
	return &ImportController{
		ImportService: importService,
	}
}

func (c *ImportController) CreateJob(ctx *fiber.Ctx) error {
	var req CreateJobRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.SourceFileRef == "" || req.DatasetID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sourceFileRef and datasetId are required"})
	}

	if userID, ok := ctx.Locals("user_id").(string); ok {
		req.CreatedBy = userID
	}

	job, err := c.ImportService.CreateJob(ctx.UserContext(), &req)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(job)
}

func (c *ImportController) GetJob(ctx *fiber.Ctx) error {
	job, err := c.ImportService.GetJob(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Job not found"})
	}

	return ctx.JSON(job)
}

func (c *ImportController) ListJobs(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))

	jobs, err := c.ImportService.ListJobs(ctx.UserContext(), ctx.Query("dataset_id"), limit)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(jobs)
}

type updateJobRequest struct {
	ColumnMapping ColumnMapping                   `json:"columnMapping"`
	ColumnTypes   map[string]dataset.VariableKind `json:"columnTypes"`
}

func (c *ImportController) UpdateJob(ctx *fiber.Ctx) error {
	var req updateJobRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	job, err := c.ImportService.UpdateJob(ctx.UserContext(), ctx.Params("id"), req.ColumnMapping, req.ColumnTypes)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(job)
}

func (c *ImportController) PauseJob(ctx *fiber.Ctx) error {
	if err := c.ImportService.PauseJob(ctx.UserContext(), ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{"message": "Pause requested"})
}

func (c *ImportController) ResumeJob(ctx *fiber.Ctx) error {
	if err := c.ImportService.ResumeJob(ctx.UserContext(), ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{"message": "Job resumed"})
}

func (c *ImportController) CancelJob(ctx *fiber.Ctx) error {
	if err := c.ImportService.CancelJob(ctx.UserContext(), ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{"message": "Cancel requested"})
}

func (c *ImportController) Preview(ctx *fiber.Ctx) error {
	var req PreviewRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.SourceFileRef == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sourceFileRef is required"})
	}

	result, err := c.ImportService.Preview(ctx.UserContext(), &req)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(result)
}
