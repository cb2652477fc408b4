package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"competition-hub/auth"
	"competition-hub/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Account{},
		&models.UnauthenticatedEmail{},
		&models.Competition{},
		&models.Rule{},
		&models.Management{},
		&models.Team{},
		&models.Applicant{},
		&models.Participant{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// captureMailer records the last OTP mail instead of sending it.
type captureMailer struct {
	to   string
	body string
}

func (m *captureMailer) Send(to, subject, body string) error {
	m.to = to
	m.body = body
	return nil
}

func testAccount(t *testing.T, db *gorm.DB, username string) *models.Account {
	t.Helper()
	hash, err := auth.HashPassword("password-1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	account := models.Account{
		ID:                  uuid.NewString(),
		Email:               username + "@example.com",
		Username:            username,
		PasswordHash:        hash,
		IsActive:            true,
		LastPasswordChanged: time.Now(),
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return &account
}

func testCompetition(t *testing.T, db *gorm.DB, creator *models.Account) *models.Competition {
	t.Helper()
	return namedCompetition(t, db, creator, "Spring Open", "spring-open")
}

// testCompetition2 seeds a second competition for scope tests.
func testCompetition2(t *testing.T, db *gorm.DB, creator *models.Account) *models.Competition {
	t.Helper()
	return namedCompetition(t, db, creator, "Autumn Open", "autumn-open")
}

func namedCompetition(t *testing.T, db *gorm.DB, creator *models.Account, title, slugged string) *models.Competition {
	t.Helper()
	competition := models.Competition{
		ID:         uuid.NewString(),
		Title:      title,
		Slug:       slugged,
		CreatorID:  &creator.ID,
		Status:     models.StatusRecruiting,
		Tournament: models.JSONMap{},
		Content:    models.JSONMap{},
	}
	if err := db.Create(&competition).Error; err != nil {
		t.Fatalf("create competition: %v", err)
	}
	return &competition
}
