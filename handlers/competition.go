package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"competition-hub/middleware"
	"competition-hub/models"
	"competition-hub/services"
)

func SetupCompetitionRoutes(app *fiber.App, db *gorm.DB, competitionService *services.CompetitionService) {
	// 🔓 Public views
	app.Get("/competitions/:id/preview", middleware.LoadCompetition(db), competitionService.PreviewHandler)
	app.Get("/competitions/:id/rules", middleware.LoadCompetition(db), competitionService.RulesHandler)

	// 🔐 Account-only CRUD
	app.Post("/competitions", middleware.RequireAccount(), competitionService.CreateHandler)
	app.Get("/competitions/mine", middleware.RequireAccount(), competitionService.MineHandler)

	// Management-gated views and edits. Each write route is bound to the
	// capability flag it spends.
	app.Get("/competitions/:id",
		middleware.RequireAccount(), middleware.RequireManagementRead(db), competitionService.GetHandler)
	app.Patch("/competitions/:id",
		middleware.RequireAccount(), middleware.RequireManagement(db, models.ActionContent), competitionService.PatchHandler)
	app.Patch("/competitions/:id/status",
		middleware.RequireAccount(), middleware.RequireManagement(db, models.ActionStatus), competitionService.StatusHandler)
	app.Post("/competitions/:id/rules",
		middleware.RequireAccount(), middleware.RequireManagement(db, models.ActionRules), competitionService.AddRulesHandler)

	// Creator-only manager administration
	app.Delete("/competitions/:id",
		middleware.RequireAccount(), middleware.RequireCreator(db), competitionService.DeleteHandler)
	app.Get("/competitions/:id/managers",
		middleware.RequireAccount(), middleware.RequireManagementRead(db), competitionService.ManagersHandler)
	app.Post("/competitions/:id/managers",
		middleware.RequireAccount(), middleware.RequireCreator(db), competitionService.AddManagerHandler)
	app.Patch("/competitions/:id/managers",
		middleware.RequireAccount(), middleware.RequireCreator(db), competitionService.PatchManagerHandler)
	app.Delete("/competitions/:id/managers",
		middleware.RequireAccount(), middleware.RequireCreator(db), competitionService.RemoveManagerHandler)

	// Invited managers confirm their own invitation here
	app.Put("/competitions/:id/management/accept",
		middleware.RequireAccount(), middleware.LoadCompetition(db), competitionService.AcceptManagementHandler)
}
