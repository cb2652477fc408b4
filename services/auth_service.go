package services

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"competition-hub/auth"
	"competition-hub/middleware"
	"competition-hub/models"
	"competition-hub/utils"
)

const otpLength = 6

// AuthService owns account signup/login, OTP email verification and account
// self-service. Domain methods take explicit principals and return domain
// errors; the exported fiber handlers below adapt HTTP to them.
type AuthService struct {
	DB        *gorm.DB
	Tokens    *auth.TokenService
	Mailer    utils.Mailer
	OTPWindow time.Duration
	now       func() time.Time
}

func NewAuthService(db *gorm.DB, tokens *auth.TokenService, mailer utils.Mailer) *AuthService {
	window := 5 * time.Minute
	if v := os.Getenv("OTP_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = time.Duration(n) * time.Minute
		}
	}
	return &AuthService{DB: db, Tokens: tokens, Mailer: mailer, OTPWindow: window, now: time.Now}
}

// EmailExists reports whether an account already claims the email.
func (s *AuthService) EmailExists(email string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Account{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Count(&count).Error
	return count > 0, err
}

// RequestOTP issues a fresh 6-digit code for the email and returns the
// remaining validity window. Re-requesting replaces the previous code; the
// single-row-per-email primary key keeps exactly one code live.
func (s *AuthService) RequestOTP(email string) (time.Duration, error) {
	email = models.NormalizeEmail(email)

	exists, err := s.EmailExists(email)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrEmailAlreadyRegistered
	}
	var verified int64
	if err := s.DB.Model(&models.UnauthenticatedEmail{}).
		Where("email = ? AND is_verified = ?", email, true).
		Count(&verified).Error; err != nil {
		return 0, err
	}
	if verified > 0 {
		return 0, ErrEmailAlreadyVerified
	}

	record := models.UnauthenticatedEmail{
		Email:      email,
		OTP:        utils.GenerateOTP(otpLength),
		CreatedAt:  s.now(),
		IsVerified: false,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		UpdateAll: true,
	}).Create(&record).Error; err != nil {
		return 0, err
	}

	if err := s.Mailer.Send(email, "Verification code", record.OTP); err != nil {
		log.Printf("ERROR sending OTP mail to %s: %v", email, err)
	}
	return record.OTPTimeRemaining(s.now(), s.OTPWindow), nil
}

// VerifyOTP marks the pending email verified when the code is live and
// matches exactly. A wrong code never flips the flag, and repeating a correct
// verification is harmless.
func (s *AuthService) VerifyOTP(email, otp string) error {
	email = models.NormalizeEmail(email)
	var record models.UnauthenticatedEmail
	if err := s.DB.First(&record, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmailNotFound
		}
		return err
	}
	if !record.VerifyOTP(otp, s.now(), s.OTPWindow) {
		return ErrOTPVerificationFailed
	}
	return s.DB.Model(&record).Update("is_verified", true).Error
}

// Signup creates the account once the email holds a verified OTP record. The
// pending record is consumed in the same transaction.
func (s *AuthService) Signup(email, username, password string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	if username == "" {
		return nil, &APIError{Status: 400, Code: "InvalidRequest", Field: "username", Message: "username is required"}
	}
	if len(password) < 8 {
		return nil, &APIError{Status: 400, Code: "InvalidRequest", Field: "password", Message: "password must be at least 8 characters"}
	}

	var pending models.UnauthenticatedEmail
	err := s.DB.First(&pending, "email = ? AND is_verified = ?", email, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmailNotVerified
		}
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	account := models.Account{
		ID:                  uuid.NewString(),
		Email:               email,
		Username:            username,
		PasswordHash:        hash,
		IsActive:            true,
		LastPasswordChanged: s.now(),
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var taken int64
		tx.Model(&models.Account{}).Where("username = ?", username).Count(&taken)
		if taken > 0 {
			return ErrUsernameTaken
		}
		if err := tx.Create(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailAlreadyRegistered
			}
			return err
		}
		return tx.Delete(&pending).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Login checks email+password and mints the account token pair. Unknown
// email and wrong password answer the same error so credentials cannot be
// probed apart.
func (s *AuthService) Login(email, password string) (access, refresh string, err error) {
	var account models.Account
	err = s.DB.First(&account, "email = ? AND is_active = ?", models.NormalizeEmail(email), true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrNoActiveAccount
		}
		return "", "", err
	}
	if !auth.CheckPassword(password, account.PasswordHash) {
		return "", "", ErrNoActiveAccount
	}
	if access, err = s.Tokens.MintAccountAccess(account.ID); err != nil {
		return "", "", err
	}
	if refresh, err = s.Tokens.MintAccountRefresh(account.ID); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *AuthService) Refresh(refreshToken string) (string, error) {
	accountID, err := s.Tokens.ValidateAccountRefresh(refreshToken)
	if err != nil {
		return "", &APIError{Status: 401, Code: "InvalidToken", Message: "refresh token is invalid or expired"}
	}
	var count int64
	s.DB.Model(&models.Account{}).Where("id = ? AND is_active = ?", accountID, true).Count(&count)
	if count == 0 {
		return "", ErrNoActiveAccount
	}
	return s.Tokens.MintAccountAccess(accountID)
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(account *models.Account, current, next string) error {
	if !auth.CheckPassword(current, account.PasswordHash) {
		return ErrWrongPassword
	}
	if len(next) < 8 {
		return &APIError{Status: 400, Code: "InvalidRequest", Field: "new_password", Message: "password must be at least 8 characters"}
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.DB.Model(account).Updates(map[string]interface{}{
		"password_hash":         hash,
		"last_password_changed": s.now(),
	}).Error
}

// ChangeEmail moves the account to a new address that holds a verified OTP
// record; the record is consumed.
func (s *AuthService) ChangeEmail(account *models.Account, newEmail, otp string) error {
	newEmail = models.NormalizeEmail(newEmail)
	var pending models.UnauthenticatedEmail
	if err := s.DB.First(&pending, "email = ?", newEmail).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmailNotFound
		}
		return err
	}
	if !pending.VerifyOTP(otp, s.now(), s.OTPWindow) {
		return ErrOTPVerificationFailed
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(account).Update("email", newEmail).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailAlreadyRegistered
			}
			return err
		}
		return tx.Delete(&pending).Error
	})
}

// ChangeUsername renames the account.
func (s *AuthService) ChangeUsername(account *models.Account, username string) error {
	if username == "" {
		return &APIError{Status: 400, Code: "InvalidRequest", Field: "username", Message: "username is required"}
	}
	if err := s.DB.Model(account).Update("username", username).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

// StartOTPCleanupScheduler purges expired, unverified OTP rows every minute.
// Verified rows stay until signup or email change consumes them.
func (s *AuthService) StartOTPCleanupScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			cutoff := s.now().Add(-s.OTPWindow)
			result := s.DB.Where("is_verified = ? AND created_at < ?", false, cutoff).
				Delete(&models.UnauthenticatedEmail{})
			if result.Error != nil {
				log.Printf("[Scheduler] OTP cleanup DB error: %v", result.Error)
				return
			}
			if result.RowsAffected > 0 {
				log.Printf("✅ Purged %d expired OTP records", result.RowsAffected)
			}
		}),
	)
}

// --- HTTP handlers ---

func (s *AuthService) CheckEmailHandler(c *fiber.Ctx) error {
	type Req struct {
		Email string `json:"email"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(400).JSON(fiber.Map{"error": "email is required"})
	}
	exists, err := s.EmailExists(req.Email)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"email": req.Email, "exists": exists})
}

func (s *AuthService) RequestOTPHandler(c *fiber.Ctx) error {
	type Req struct {
		Email string `json:"email"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(400).JSON(fiber.Map{"error": "email is required"})
	}
	remaining, err := s.RequestOTP(req.Email)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"email":             req.Email,
		"remaining_seconds": int(remaining.Seconds()),
	})
}

func (s *AuthService) VerifyOTPHandler(c *fiber.Ctx) error {
	type Req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.OTP == "" {
		return c.Status(400).JSON(fiber.Map{"error": "email and otp are required"})
	}
	if err := s.VerifyOTP(req.Email, req.OTP); err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"email": req.Email, "is_verified": true})
}

func (s *AuthService) SignupHandler(c *fiber.Ctx) error {
	type Req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(400).JSON(fiber.Map{"error": "email, username and password are required"})
	}
	account, err := s.Signup(req.Email, req.Username, req.Password)
	if err != nil {
		return Respond(c, err)
	}
	return c.Status(201).JSON(account)
}

func (s *AuthService) LoginHandler(c *fiber.Ctx) error {
	type Req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	access, refresh, err := s.Login(req.Email, req.Password)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"access": access, "refresh": refresh})
}

func (s *AuthService) RefreshHandler(c *fiber.Ctx) error {
	type Req struct {
		Refresh string `json:"refresh"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.Refresh == "" {
		return c.Status(400).JSON(fiber.Map{"error": "refresh token is required"})
	}
	access, err := s.Refresh(req.Refresh)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"access": access})
}

func (s *AuthService) MeHandler(c *fiber.Ctx) error {
	return c.JSON(middleware.GetPrincipal(c).Account)
}

func (s *AuthService) ChangePasswordHandler(c *fiber.Ctx) error {
	type Req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if err := s.ChangePassword(middleware.GetPrincipal(c).Account, req.CurrentPassword, req.NewPassword); err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"detail": "password changed"})
}

func (s *AuthService) ChangeEmailHandler(c *fiber.Ctx) error {
	type Req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.OTP == "" {
		return c.Status(400).JSON(fiber.Map{"error": "email and otp are required"})
	}
	if err := s.ChangeEmail(middleware.GetPrincipal(c).Account, req.Email, req.OTP); err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"detail": "email changed"})
}

func (s *AuthService) ChangeUsernameHandler(c *fiber.Ctx) error {
	type Req struct {
		Username string `json:"username"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if err := s.ChangeUsername(middleware.GetPrincipal(c).Account, req.Username); err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"detail": "username changed"})
}
