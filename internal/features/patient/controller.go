package patient

import (
	"strconv"

	common_models "go-cohort/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type PatientController struct {
	PatientService PatientService
}

func NewPatientController(patientService PatientService) *PatientController {
	return &PatientController{
		PatientService: patientService,
	}
}

func (c *PatientController) CreatePatient(ctx *fiber.Ctx) error {
	var p Patient
	if err := ctx.BodyParser(&p); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	created, err := c.PatientService.CreatePatient(ctx.UserContext(), &p)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(created)
}

func (c *PatientController) GetPatient(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	p, err := c.PatientService.GetPatient(ctx.UserContext(), id)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Patient not found"})
	}

	return ctx.JSON(p)
}

func (c *PatientController) ListPatients(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))

	patients, total, err := c.PatientService.ListPatients(ctx.UserContext(), page, limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{
		"data":       patients,
		"pagination": common_models.NewPagination(page, limit, total),
	})
}

func (c *PatientController) UpdatePatient(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	var p Patient
	if err := ctx.BodyParser(&p); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updated, err := c.PatientService.UpdatePatient(ctx.UserContext(), id, &p)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(updated)
}

func (c *PatientController) DeletePatient(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	if err := c.PatientService.DeletePatient(ctx.UserContext(), id); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{"message": "Patient deleted"})
}
