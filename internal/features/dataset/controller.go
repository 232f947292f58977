package dataset

import (
	"strconv"

	common_models "go-cohort/internal/common/models"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DatasetController struct {
	DatasetService DatasetService
}

func NewDatasetController(datasetService DatasetService) *DatasetController {
	return &DatasetController{
		DatasetService: datasetService,
	}
}

func (c *DatasetController) CreateDataset(ctx *fiber.Ctx) error {
	var d Dataset
	if err := ctx.BodyParser(&d); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if userID, ok := ctx.Locals("user_id").(string); ok {
		d.CreatedBy = userID
	}

	created, err := c.DatasetService.CreateDataset(ctx.UserContext(), &d)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(created)
}

func (c *DatasetController) GetDataset(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	d, err := c.DatasetService.GetDataset(ctx.UserContext(), id)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Dataset not found"})
	}

	return ctx.JSON(d)
}

func (c *DatasetController) ListDatasets(ctx *fiber.Ctx) error {
	datasets, err := c.DatasetService.ListDatasets(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(datasets)
}

func (c *DatasetController) UpdateDataset(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	var d Dataset
	if err := ctx.BodyParser(&d); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updated, err := c.DatasetService.UpdateDataset(ctx.UserContext(), id, &d)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(updated)
}

func (c *DatasetController) DeleteDataset(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	if err := c.DatasetService.DeleteDataset(ctx.UserContext(), id); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{"message": "Dataset deleted"})
}

func (c *DatasetController) CreateVariable(ctx *fiber.Ctx) error {
	datasetID, err := primitive.ObjectIDFromHex(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid dataset id"})
	}

	var v Variable
	if err := ctx.BodyParser(&v); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	v.DatasetID = datasetID

	created, err := c.DatasetService.CreateVariable(ctx.UserContext(), &v)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(created)
}

func (c *DatasetController) ListVariables(ctx *fiber.Ctx) error {
	vars, err := c.DatasetService.ListVariables(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(vars)
}

func (c *DatasetController) ListEntries(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))

	entries, total, err := c.DatasetService.ListEntries(ctx.UserContext(), ctx.Params("id"), page, limit)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{
		"data":       entries,
		"pagination": common_models.NewPagination(page, limit, total),
	})
}

func (c *DatasetController) DownloadTemplate(ctx *fiber.Ctx) error {
	format := ctx.Query("format", "csv")

	data, filename, err := c.DatasetService.BuildTemplate(ctx.UserContext(), ctx.Params("id"), format)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Set("Content-Disposition", "attachment; filename="+filename)
	if format == "xlsx" {
		ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	} else {
		ctx.Set("Content-Type", "text/csv")
	}

	return ctx.Send(data)
}
