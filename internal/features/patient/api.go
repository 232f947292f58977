package patient

import (
	"go-cohort/internal/config"
	"go-cohort/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type PatientApi struct {
	PatientController *PatientController
	Config            *config.Config
}

func NewPatientApi(patientController *PatientController, config *config.Config) *PatientApi {
	return &PatientApi{
		PatientController: patientController,
		Config:            config,
	}
}

func (api *PatientApi) Setup(app *fiber.App) {
	group := app.Group("/api/patients", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Post("/", api.PatientController.CreatePatient)
	group.Get("/", api.PatientController.ListPatients)
	group.Get("/:id", api.PatientController.GetPatient)
	group.Put("/:id", api.PatientController.UpdatePatient)
	group.Delete("/:id", api.PatientController.DeletePatient)
}
