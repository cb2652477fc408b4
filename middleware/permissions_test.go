package middleware

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"competition-hub/models"
)

func permTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Account{}, &models.Competition{}, &models.Management{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCreatorAlwaysAllowed(t *testing.T) {
	db := permTestDB(t)
	creator := models.Account{ID: uuid.NewString(), Email: "c@example.com", Username: "creator", IsActive: true}
	db.Create(&creator)
	competition := models.Competition{ID: uuid.NewString(), Title: "Cup", Slug: "cup", CreatorID: &creator.ID, Status: models.StatusRecruiting}
	db.Create(&competition)

	// Even an explicit all-false Management row does not demote the creator.
	db.Create(&models.Management{
		ID:            uuid.NewString(),
		AccountID:     creator.ID,
		CompetitionID: competition.ID,
		Nickname:      "self",
	})

	p := Principal{Kind: PrincipalAccount, Account: &creator}
	if !CanRead(db, p, &competition) {
		t.Error("creator denied read")
	}
	for _, action := range []models.Action{models.ActionRules, models.ActionContent, models.ActionApplicants, models.ActionParticipants, models.ActionStatus} {
		if !CanManage(db, p, &competition, action) {
			t.Errorf("creator denied %s", action)
		}
	}
}

func TestManagementGrantFlow(t *testing.T) {
	db := permTestDB(t)
	creator := models.Account{ID: uuid.NewString(), Email: "c@example.com", Username: "creator", IsActive: true}
	manager := models.Account{ID: uuid.NewString(), Email: "m@example.com", Username: "manager", IsActive: true}
	db.Create(&creator)
	db.Create(&manager)
	competition := models.Competition{ID: uuid.NewString(), Title: "Cup", Slug: "cup", CreatorID: &creator.ID, Status: models.StatusRecruiting}
	db.Create(&competition)

	grant := models.Management{
		ID:            uuid.NewString(),
		AccountID:     manager.ID,
		CompetitionID: competition.ID,
		Nickname:      "manager 1",
	}
	db.Create(&grant)

	p := Principal{Kind: PrincipalAccount, Account: &manager}

	// Unaccepted invite grants nothing, reads included.
	if CanRead(db, p, &competition) {
		t.Error("unaccepted grant allows read")
	}
	if CanManage(db, p, &competition, models.ActionApplicants) {
		t.Error("unaccepted grant allows applicants action")
	}

	db.Model(&grant).Update("accepted", true)
	if !CanRead(db, p, &competition) {
		t.Error("accepted grant denied read")
	}
	if CanManage(db, p, &competition, models.ActionApplicants) {
		t.Error("accepted grant without the flag allows applicants action")
	}

	db.Model(&grant).Update("handle_applicants", true)
	if !CanManage(db, p, &competition, models.ActionApplicants) {
		t.Error("granted applicants capability denied")
	}
	if CanManage(db, p, &competition, models.ActionStatus) {
		t.Error("ungranted status capability allowed")
	}
}

func TestNonAccountPrincipalsDenied(t *testing.T) {
	db := permTestDB(t)
	creator := models.Account{ID: uuid.NewString(), Email: "c@example.com", Username: "creator", IsActive: true}
	db.Create(&creator)
	competition := models.Competition{ID: uuid.NewString(), Title: "Cup", Slug: "cup", CreatorID: &creator.ID, Status: models.StatusRecruiting}
	db.Create(&competition)

	for _, p := range []Principal{
		{Kind: PrincipalAnonymous},
		{Kind: PrincipalParticipant, Participant: &models.Participant{ID: uuid.NewString()}},
	} {
		if CanRead(db, p, &competition) || CanManage(db, p, &competition, models.ActionRules) {
			t.Errorf("principal kind %v granted management access", p.Kind)
		}
	}
}
