package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"competition-hub/middleware"
	"competition-hub/models"
)

// CompetitionService owns competition and management CRUD plus the versioned
// rules. Permission checks happen in the route middleware; methods here trust
// the competition they are handed.
type CompetitionService struct {
	DB *gorm.DB
}

func NewCompetitionService(db *gorm.DB) *CompetitionService {
	return &CompetitionService{DB: db}
}

type CompetitionInput struct {
	Title        string   `json:"title"`
	Introduction string   `json:"introduction"`
	IsTeamGame   bool     `json:"is_team_game"`
	Managers     []string `json:"managers"`
}

// Create opens a competition and invites the named accounts as managers with
// all capabilities off. The creator is silently dropped from the invite list.
func (s *CompetitionService) Create(creator *models.Account, in CompetitionInput) (*models.Competition, error) {
	if in.Title == "" {
		return nil, &APIError{Status: 400, Code: "InvalidRequest", Field: "title", Message: "title is required"}
	}

	competition := models.Competition{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Slug:         slug.Make(in.Title),
		CreatorID:    &creator.ID,
		Status:       models.StatusRecruiting,
		Introduction: in.Introduction,
		Tournament:   models.JSONMap{},
		Content:      models.JSONMap{},
		IsTeamGame:   in.IsTeamGame,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&competition).Error; err != nil {
			return err
		}
		idx := 0
		for _, username := range in.Managers {
			if username == creator.Username {
				continue
			}
			var account models.Account
			if err := tx.First(&account, "username = ?", username).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrUsernameNotFound
				}
				return err
			}
			idx++
			management := models.Management{
				ID:            uuid.NewString(),
				AccountID:     account.ID,
				CompetitionID: competition.ID,
				Nickname:      fmt.Sprintf("manager %d", idx),
			}
			if err := tx.Create(&management).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyManager
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &competition, nil
}

// Preview is the public view: basic fields plus applicant/participant counts.
func (s *CompetitionService) Preview(competition *models.Competition) (fiber.Map, error) {
	var participants, applicants int64
	if err := s.DB.Model(&models.Participant{}).
		Where("competition_id = ?", competition.ID).Count(&participants).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Applicant{}).
		Where("competition_id = ?", competition.ID).Count(&applicants).Error; err != nil {
		return nil, err
	}
	return fiber.Map{
		"id":                  competition.ID,
		"title":               competition.Title,
		"slug":                competition.Slug,
		"created_at":          competition.CreatedAt,
		"creator_id":          competition.CreatorID,
		"status":              competition.Status,
		"introduction":        competition.Introduction,
		"is_team_game":        competition.IsTeamGame,
		"num_of_participants": participants,
		"num_of_applicants":   applicants,
	}, nil
}

// Mine lists competitions created by the account, newest first.
func (s *CompetitionService) Mine(account *models.Account) ([]models.Competition, error) {
	var competitions []models.Competition
	err := s.DB.Where("creator_id = ?", account.ID).
		Order("created_at DESC").
		Find(&competitions).Error
	return competitions, err
}

type CompetitionPatch struct {
	Title        *string         `json:"title"`
	Introduction *string         `json:"introduction"`
	Content      *models.JSONMap `json:"content"`
	Tournament   *models.JSONMap `json:"tournament"`
}

// UpdateContent patches title/introduction and the opaque content/tournament
// blobs. Guarded by the handle_content capability at the route.
func (s *CompetitionService) UpdateContent(competition *models.Competition, patch CompetitionPatch) error {
	updates := map[string]interface{}{}
	if patch.Title != nil {
		if *patch.Title == "" {
			return &APIError{Status: 400, Code: "InvalidRequest", Field: "title", Message: "title cannot be empty"}
		}
		updates["title"] = *patch.Title
		updates["slug"] = slug.Make(*patch.Title)
	}
	if patch.Introduction != nil {
		updates["introduction"] = *patch.Introduction
	}
	if patch.Content != nil {
		updates["content"] = *patch.Content
	}
	if patch.Tournament != nil {
		updates["tournament"] = *patch.Tournament
	}
	if len(updates) == 0 {
		return nil
	}
	return s.DB.Model(competition).Updates(updates).Error
}

// UpdateStatus moves the competition through its lifecycle. Guarded by the
// handle_status capability at the route.
func (s *CompetitionService) UpdateStatus(competition *models.Competition, status string) error {
	if !models.ValidStatus(status) {
		return ErrInvalidStatus
	}
	return s.DB.Model(competition).Update("status", status).Error
}

// Delete removes a competition and its dependents. Blocked while participants
// or teams exist; rules, managements and applicants cascade.
func (s *CompetitionService) Delete(competition *models.Competition) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var participants, teams int64
		tx.Model(&models.Participant{}).Where("competition_id = ?", competition.ID).Count(&participants)
		tx.Model(&models.Team{}).Where("competition_id = ?", competition.ID).Count(&teams)
		if participants > 0 || teams > 0 {
			return ErrCompetitionProtected
		}
		if err := tx.Where("competition_id = ?", competition.ID).Delete(&models.Rule{}).Error; err != nil {
			return err
		}
		if err := tx.Where("competition_id = ?", competition.ID).Delete(&models.Management{}).Error; err != nil {
			return err
		}
		if err := tx.Where("competition_id = ?", competition.ID).Delete(&models.Applicant{}).Error; err != nil {
			return err
		}
		return tx.Delete(competition).Error
	})
}

// Managers lists the management grants with their accounts.
func (s *CompetitionService) Managers(competitionID string) ([]models.Management, error) {
	var managements []models.Management
	err := s.DB.Preload("Account").
		Where("competition_id = ?", competitionID).
		Find(&managements).Error
	return managements, err
}

// AddManager invites an account as manager, all capabilities off.
func (s *CompetitionService) AddManager(competition *models.Competition, username string) (*models.Management, error) {
	var account models.Account
	if err := s.DB.First(&account, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUsernameNotFound
		}
		return nil, err
	}
	if competition.CreatorID != nil && *competition.CreatorID == account.ID {
		return nil, &APIError{Status: 400, Code: "InvalidRequest", Field: "username", Message: "the creator is already all-capable"}
	}
	var count int64
	s.DB.Model(&models.Management{}).Where("competition_id = ?", competition.ID).Count(&count)
	management := models.Management{
		ID:            uuid.NewString(),
		AccountID:     account.ID,
		CompetitionID: competition.ID,
		Nickname:      fmt.Sprintf("manager %d", count+1),
	}
	if err := s.DB.Create(&management).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyManager
		}
		return nil, err
	}
	return &management, nil
}

type ManagementPatch struct {
	Username           string `json:"username"`
	HandleRules        *bool  `json:"handle_rules"`
	HandleContent      *bool  `json:"handle_content"`
	HandleApplicants   *bool  `json:"handle_applicants"`
	HandleParticipants *bool  `json:"handle_participants"`
	HandleStatus       *bool  `json:"handle_status"`
}

// PatchManager updates capability flags on a grant. Nickname and acceptance
// are not creator-writable.
func (s *CompetitionService) PatchManager(competition *models.Competition, patch ManagementPatch) (*models.Management, error) {
	management, err := s.managementByUsername(competition, patch.Username)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.HandleRules != nil {
		updates["handle_rules"] = *patch.HandleRules
	}
	if patch.HandleContent != nil {
		updates["handle_content"] = *patch.HandleContent
	}
	if patch.HandleApplicants != nil {
		updates["handle_applicants"] = *patch.HandleApplicants
	}
	if patch.HandleParticipants != nil {
		updates["handle_participants"] = *patch.HandleParticipants
	}
	if patch.HandleStatus != nil {
		updates["handle_status"] = *patch.HandleStatus
	}
	if len(updates) > 0 {
		if err := s.DB.Model(management).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return management, nil
}

// AcceptManagement flips the accepted flag on the caller's own grant.
func (s *CompetitionService) AcceptManagement(competition *models.Competition, account *models.Account) error {
	var management models.Management
	err := s.DB.First(&management, "competition_id = ? AND account_id = ?", competition.ID, account.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrManagementNotFound
		}
		return err
	}
	return s.DB.Model(&management).Update("accepted", true).Error
}

// RemoveManager deletes a grant by the manager's username.
func (s *CompetitionService) RemoveManager(competition *models.Competition, username string) error {
	management, err := s.managementByUsername(competition, username)
	if err != nil {
		return err
	}
	return s.DB.Delete(management).Error
}

func (s *CompetitionService) managementByUsername(competition *models.Competition, username string) (*models.Management, error) {
	var account models.Account
	if err := s.DB.First(&account, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUsernameNotFound
		}
		return nil, err
	}
	var management models.Management
	err := s.DB.First(&management, "competition_id = ? AND account_id = ?", competition.ID, account.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrManagementNotFound
		}
		return nil, err
	}
	return &management, nil
}

// LatestRules returns the newest revision per rule order: rows whose depth is
// the maximum for their order within the competition.
func (s *CompetitionService) LatestRules(competitionID string) ([]models.Rule, error) {
	var rules []models.Rule
	err := s.DB.Raw(`
        SELECT * FROM rules r1
        WHERE r1.competition_id = ?
          AND r1.depth = (
            SELECT MAX(r2.depth) FROM rules r2
            WHERE r2.competition_id = r1.competition_id AND r2.rule_order = r1.rule_order
          )
        ORDER BY r1.rule_order
    `, competitionID).Scan(&rules).Error
	return rules, err
}

type RuleInput struct {
	Order   int    `json:"order"`
	Content string `json:"content"`
}

// AddRules appends rule revisions. Each entry becomes a new row at depth
// max(depth for order)+1; rows are never updated in place.
func (s *CompetitionService) AddRules(competition *models.Competition, inputs []RuleInput) ([]models.Rule, error) {
	var created []models.Rule
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for _, in := range inputs {
			if in.Content == "" {
				return &APIError{Status: 400, Code: "InvalidRequest", Field: "content", Message: "rule content is required"}
			}
			var maxDepth int
			row := tx.Model(&models.Rule{}).
				Where("competition_id = ? AND rule_order = ?", competition.ID, in.Order).
				Select("COALESCE(MAX(depth), 0)")
			if err := row.Scan(&maxDepth).Error; err != nil {
				return err
			}
			rule := models.Rule{
				ID:            uuid.NewString(),
				CompetitionID: competition.ID,
				Content:       in.Content,
				Order:         in.Order,
				Depth:         maxDepth + 1,
			}
			if err := tx.Create(&rule).Error; err != nil {
				return err
			}
			created = append(created, rule)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// --- HTTP handlers ---

func (s *CompetitionService) CreateHandler(c *fiber.Ctx) error {
	var in CompetitionInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	competition, err := s.Create(middleware.GetPrincipal(c).Account, in)
	if err != nil {
		return Respond(c, err)
	}
	return c.Status(201).JSON(competition)
}

func (s *CompetitionService) GetHandler(c *fiber.Ctx) error {
	return c.JSON(middleware.GetCompetition(c))
}

func (s *CompetitionService) PreviewHandler(c *fiber.Ctx) error {
	preview, err := s.Preview(middleware.GetCompetition(c))
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(preview)
}

func (s *CompetitionService) MineHandler(c *fiber.Ctx) error {
	competitions, err := s.Mine(middleware.GetPrincipal(c).Account)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(competitions)
}

func (s *CompetitionService) PatchHandler(c *fiber.Ctx) error {
	var patch CompetitionPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	competition := middleware.GetCompetition(c)
	if err := s.UpdateContent(competition, patch); err != nil {
		return Respond(c, err)
	}
	return c.JSON(competition)
}

func (s *CompetitionService) StatusHandler(c *fiber.Ctx) error {
	type Req struct {
		Status string `json:"status"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	competition := middleware.GetCompetition(c)
	if err := s.UpdateStatus(competition, req.Status); err != nil {
		return Respond(c, err)
	}
	return c.JSON(competition)
}

func (s *CompetitionService) DeleteHandler(c *fiber.Ctx) error {
	if err := s.Delete(middleware.GetCompetition(c)); err != nil {
		return Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *CompetitionService) ManagersHandler(c *fiber.Ctx) error {
	managements, err := s.Managers(middleware.GetCompetition(c).ID)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(managements)
}

func (s *CompetitionService) AddManagerHandler(c *fiber.Ctx) error {
	type Req struct {
		Username string `json:"username"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return c.Status(400).JSON(fiber.Map{"error": "username is required"})
	}
	management, err := s.AddManager(middleware.GetCompetition(c), req.Username)
	if err != nil {
		return Respond(c, err)
	}
	return c.Status(201).JSON(management)
}

func (s *CompetitionService) PatchManagerHandler(c *fiber.Ctx) error {
	var patch ManagementPatch
	if err := c.BodyParser(&patch); err != nil || patch.Username == "" {
		return c.Status(400).JSON(fiber.Map{"error": "username is required"})
	}
	management, err := s.PatchManager(middleware.GetCompetition(c), patch)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(management)
}

func (s *CompetitionService) AcceptManagementHandler(c *fiber.Ctx) error {
	err := s.AcceptManagement(middleware.GetCompetition(c), middleware.GetPrincipal(c).Account)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(fiber.Map{"detail": "management accepted"})
}

func (s *CompetitionService) RemoveManagerHandler(c *fiber.Ctx) error {
	type Req struct {
		Username string `json:"username"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return c.Status(400).JSON(fiber.Map{"error": "username is required"})
	}
	if err := s.RemoveManager(middleware.GetCompetition(c), req.Username); err != nil {
		return Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *CompetitionService) RulesHandler(c *fiber.Ctx) error {
	rules, err := s.LatestRules(middleware.GetCompetition(c).ID)
	if err != nil {
		return Respond(c, err)
	}
	return c.JSON(rules)
}

func (s *CompetitionService) AddRulesHandler(c *fiber.Ctx) error {
	var inputs []RuleInput
	if err := c.BodyParser(&inputs); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	rules, err := s.AddRules(middleware.GetCompetition(c), inputs)
	if err != nil {
		return Respond(c, err)
	}
	return c.Status(201).JSON(rules)
}
