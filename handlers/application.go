package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"competition-hub/middleware"
	"competition-hub/models"
	"competition-hub/services"
)

func SetupApplicationRoutes(app *fiber.App, db *gorm.DB, applicationService *services.ApplicationService) {
	// 🔓 Anyone may apply — accounts and anonymous access-credential callers
	app.Post("/competitions/:id/apply", applicationService.ApplyHandler)
	app.Post("/competitions/:id/apply/check", applicationService.CheckAccessHandler)

	// 🔐 Applicant review is a management concern
	app.Get("/competitions/:id/applicants",
		middleware.RequireAccount(), middleware.RequireManagementRead(db), applicationService.ApplicantsHandler)
	app.Post("/competitions/:id/applicants/accept",
		middleware.RequireAccount(), middleware.RequireManagement(db, models.ActionApplicants), applicationService.AcceptApplicantsHandler)
	app.Get("/competitions/:id/participants",
		middleware.RequireAccount(), middleware.RequireManagementRead(db), applicationService.ParticipantsHandler)
}
