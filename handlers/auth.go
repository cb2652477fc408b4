package handlers

import (
	"github.com/gofiber/fiber/v2"

	"competition-hub/middleware"
	"competition-hub/services"
)

func SetupAuthRoutes(app *fiber.App, authService *services.AuthService, applicationService *services.ApplicationService) {
	// 🔓 Public signup flow
	app.Post("/auth/email/check", authService.CheckEmailHandler)
	app.Post("/auth/otp/request", authService.RequestOTPHandler)
	app.Post("/auth/otp/verify", authService.VerifyOTPHandler)
	app.Post("/auth/signup", authService.SignupHandler)

	// Token endpoints
	app.Post("/auth/login", authService.LoginHandler)
	app.Post("/auth/refresh", authService.RefreshHandler)
	app.Post("/auth/participant/login", applicationService.ParticipantLoginHandler)

	// 🔐 Account self-service
	account := app.Group("/auth", middleware.RequireAccount())
	account.Get("/me", authService.MeHandler)
	account.Patch("/password", authService.ChangePasswordHandler)
	account.Patch("/email", authService.ChangeEmailHandler)
	account.Patch("/username", authService.ChangeUsernameHandler)

	// 🔐 Participant identity
	participant := app.Group("/auth/participant", middleware.RequireParticipant())
	participant.Get("/me", applicationService.MeHandler)
}
