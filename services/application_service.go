package services

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"competition-hub/auth"
	"competition-hub/middleware"
	"competition-hub/models"
	"competition-hub/utils"
)

// ApplicationService owns the applicant→participant lifecycle: applying,
// re-checking a pending application, bulk acceptance, and the participant
// token challenge.
type ApplicationService struct {
	DB     *gorm.DB
	Tokens *auth.TokenService
	now    func() time.Time
}

func NewApplicationService(db *gorm.DB, tokens *auth.TokenService) *ApplicationService {
	return &ApplicationService{DB: db, Tokens: tokens, now: time.Now}
}

// lockForUpdate serializes writers on the competition row. SQLite (used in
// tests) has no FOR UPDATE and serializes writes on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

type ApplyInput struct {
	AccessID       string  `json:"access_id"`
	AccessPassword string  `json:"access_password"`
	Email          *string `json:"email"`
	DisplayedName  string  `json:"displayed_name"`
	HiddenName     string  `json:"hidden_name"`
	Introduction   *string `json:"introduction"`
}

// Apply files a join request for the competition. Account principals apply
// under their account; anonymous callers must bring a competition-local
// access_id/access_password pair. All uniqueness checks run inside one
// transaction holding the competition row, and the unique indexes on
// applicants are the authoritative backstop for anything that races past
// the pre-checks.
func (s *ApplicationService) Apply(p middleware.Principal, competitionID string, in ApplyInput) (*models.Applicant, error) {
	if p.Kind == middleware.PrincipalParticipant {
		return nil, ErrInvalidRequest
	}
	if in.DisplayedName == "" {
		return nil, ErrDisplayedNameRequired
	}

	applicant := models.Applicant{
		ID:            uuid.NewString(),
		CompetitionID: competitionID,
		Email:         in.Email,
		DisplayedName: in.DisplayedName,
		HiddenName:    in.HiddenName,
		Introduction:  in.Introduction,
		AppliedAt:     s.now(),
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var competition models.Competition
		if err := lockForUpdate(tx).First(&competition, "id = ?", competitionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCompetitionNotFound
			}
			return err
		}

		if p.Kind == middleware.PrincipalAccount {
			accountID := p.Account.ID
			if competition.CreatorID != nil && *competition.CreatorID == accountID {
				return ErrCreatorCannotApply
			}
			var participating int64
			tx.Model(&models.Participant{}).
				Where("competition_id = ? AND account_id = ?", competitionID, accountID).
				Count(&participating)
			if participating > 0 {
				return ErrAlreadyBeParticipant
			}
			var applied int64
			tx.Model(&models.Applicant{}).
				Where("competition_id = ? AND account_id = ?", competitionID, accountID).
				Count(&applied)
			if applied > 0 {
				return ErrAlreadyApplied
			}
			// Access credentials are ignored for account applicants.
			applicant.AccountID = &accountID
		} else {
			if in.AccessID == "" {
				return ErrAccessIDRequired
			}
			if in.AccessPassword == "" {
				return ErrAccessPWRequired
			}
			var taken int64
			tx.Model(&models.Applicant{}).
				Where("competition_id = ? AND account_id IS NULL AND access_id = ?", competitionID, in.AccessID).
				Count(&taken)
			if taken == 0 {
				tx.Model(&models.Participant{}).
					Where("competition_id = ? AND account_id IS NULL AND access_id = ?", competitionID, in.AccessID).
					Count(&taken)
			}
			if taken > 0 {
				return ErrAccessIDTaken
			}
			hash, err := auth.HashPassword(in.AccessPassword)
			if err != nil {
				return err
			}
			accessID := in.AccessID
			applicant.AccessID = &accessID
			applicant.AccessPassword = &hash
		}

		if err := tx.Create(&applicant).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if p.Kind == middleware.PrincipalAccount {
					return ErrAlreadyApplied
				}
				return ErrAccessIDTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &applicant, nil
}

// CheckAccess re-verifies a pending application. Account principals are
// matched by account; anonymous callers by access credentials, where a wrong
// password is a field-level validation error, not an auth failure.
func (s *ApplicationService) CheckAccess(p middleware.Principal, competitionID, accessID, accessPassword string) (*models.Applicant, error) {
	var applicant models.Applicant

	if p.Kind == middleware.PrincipalAccount {
		err := s.DB.First(&applicant, "competition_id = ? AND account_id = ?", competitionID, p.Account.ID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotApplied
			}
			return nil, err
		}
		return &applicant, nil
	}

	if accessID == "" {
		return nil, ErrAccessIDRequired
	}
	if accessPassword == "" {
		return nil, ErrAccessPWRequired
	}
	err := s.DB.First(&applicant, "competition_id = ? AND account_id IS NULL AND access_id = ?", competitionID, accessID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotApplied
		}
		return nil, err
	}
	if applicant.AccessPassword == nil || !auth.CheckPassword(accessPassword, *applicant.AccessPassword) {
		return nil, ErrAccessPWMismatch
	}
	return &applicant, nil
}

// Applicants lists pending applications. Emails of anonymous applicants are
// masked before leaving the service.
func (s *ApplicationService) Applicants(competitionID string) ([]models.Applicant, error) {
	var applicants []models.Applicant
	err := s.DB.Where("competition_id = ?", competitionID).
		Order("applied_at ASC").
		Find(&applicants).Error
	if err != nil {
		return nil, err
	}
	for i := range applicants {
		if applicants[i].AccountID == nil && applicants[i].Email != nil {
			masked := utils.MaskEmail(*applicants[i].Email)
			applicants[i].Email = &masked
		}
	}
	return applicants, nil
}

// AcceptApplicants promotes the given applicants to participants in one
// transaction: the competition row is locked so concurrent acceptances can't
// read the same base order, participant orders continue gap-free after the
// current maximum, and the consumed applicant rows are deleted atomically.
// Returns the number promoted; ids not matching an applicant of this
// competition are skipped.
func (s *ApplicationService) AcceptApplicants(competitionID string, applicantIDs []string) (int, error) {
	if len(applicantIDs) == 0 {
		return 0, nil
	}
	accepted := 0
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var competition models.Competition
		if err := lockForUpdate(tx).First(&competition, "id = ?", competitionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCompetitionNotFound
			}
			return err
		}

		var applicants []models.Applicant
		if err := tx.Where("competition_id = ? AND id IN ?", competitionID, applicantIDs).
			Find(&applicants).Error; err != nil {
			return err
		}
		if len(applicants) == 0 {
			return nil
		}

		// Keep the caller's ordering so assigned orders are deterministic.
		byID := make(map[string]*models.Applicant, len(applicants))
		for i := range applicants {
			byID[applicants[i].ID] = &applicants[i]
		}

		var baseOrder int
		if err := tx.Model(&models.Participant{}).
			Where("competition_id = ?", competitionID).
			Select("COALESCE(MAX(participant_order), 0)").
			Scan(&baseOrder).Error; err != nil {
			return err
		}

		consumed := make([]string, 0, len(applicants))
		next := baseOrder
		for _, id := range applicantIDs {
			applicant, ok := byID[id]
			if !ok {
				continue
			}
			next++
			participant := models.Participant{
				ID:             uuid.NewString(),
				CompetitionID:  competitionID,
				AccountID:      applicant.AccountID,
				AccessID:       applicant.AccessID,
				AccessPassword: applicant.AccessPassword,
				Email:          applicant.Email,
				DisplayedName:  applicant.DisplayedName,
				HiddenName:     applicant.HiddenName,
				Introduction:   applicant.Introduction,
				Order:          next,
				JoinedAt:       s.now(),
				LastLoginAt:    s.now(),
			}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
			consumed = append(consumed, id)
		}
		if err := tx.Where("id IN ?", consumed).Delete(&models.Applicant{}).Error; err != nil {
			return err
		}
		accepted = len(consumed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return accepted, nil
}

// Participants lists confirmed competitors in order.
func (s *ApplicationService) Participants(competitionID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := s.DB.Where("competition_id = ?", competitionID).
		Order("participant_order ASC").
		Find(&participants).Error
	return participants, err
}

// ParticipantLogin runs the access_id/access_password challenge and mints a
// participant access token. This is the only path that produces participant
// tokens — the account login never does.
func (s *ApplicationService) ParticipantLogin(competitionID, accessID, accessPassword string) (string, *models.Participant, error) {
	if accessID == "" {
		return "", nil, ErrAccessIDRequired
	}
	if accessPassword == "" {
		return "", nil, ErrAccessPWRequired
	}
	var participant models.Participant
	err := s.DB.First(&participant, "competition_id = ? AND access_id = ?", competitionID, accessID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrParticipantNotFound
		}
		return "", nil, err
	}
	if participant.AccessPassword == nil || !auth.CheckPassword(accessPassword, *participant.AccessPassword) {
		return "", nil, ErrAccessPWMismatch
	}
	token, err := s.Tokens.MintParticipantAccess(participant.ID)
	if err != nil {
		return "", nil, err
	}
	if err := s.DB.Model(&participant).Update("last_login_at", s.now()).Error; err != nil {
		return "", nil, err
	}
	return token, &participant, nil
}

// --- HTTP handlers ---

func (s *ApplicationService) ApplyHandler(c *fiber.Ctx) error {
	var in ApplyInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	applicant, err := s.Apply(middleware.GetPrincipal(c), c.Params("id"), in)
	if err != nil {
		return Respond(c, err)
	}
	return c.Status(201).JSON(applicant)
}

func (s *ApplicationService) CheckAccessHandler(c *fiber.Ctx) error {
	type Req struct {
		AccessID       string `json:"access_id"`
		AccessPassword string `json:"access_password"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	applicant, err := s.CheckAccess(middleware.GetPrincipal(c), c.Params("id"), req.AccessID, req.AccessPassword)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(applicant)
}

func (s *ApplicationService) ApplicantsHandler(c *fiber.Ctx) error {
	applicants, err := s.Applicants(middleware.GetCompetition(c).ID)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(applicants)
}

func (s *ApplicationService) AcceptApplicantsHandler(c *fiber.Ctx) error {
	type Req struct {
		ApplicantIDs []string `json:"applicant_ids"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	count, err := s.AcceptApplicants(middleware.GetCompetition(c).ID, req.ApplicantIDs)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"accepted": count})
}

func (s *ApplicationService) ParticipantsHandler(c *fiber.Ctx) error {
	participants, err := s.Participants(middleware.GetCompetition(c).ID)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(participants)
}

func (s *ApplicationService) ParticipantLoginHandler(c *fiber.Ctx) error {
	type Req struct {
		CompetitionID  string `json:"competition_id"`
		AccessID       string `json:"access_id"`
		AccessPassword string `json:"access_password"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.CompetitionID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "competition_id is required"})
	}
	token, _, err := s.ParticipantLogin(req.CompetitionID, req.AccessID, req.AccessPassword)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"access": token})
}

func (s *ApplicationService) MeHandler(c *fiber.Ctx) error {
	return c.JSON(middleware.GetPrincipal(c).Participant)
}
