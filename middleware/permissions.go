package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"competition-hub/models"
)

// The permission layer answers a uniform 404 for both missing competitions
// and denied access, so probing cannot reveal whether a competition exists.
func denyNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "competition not found",
		"code":  "not_found",
	})
}

const competitionKey = "competition"

// GetCompetition returns the competition loaded by a permission middleware.
func GetCompetition(c *fiber.Ctx) *models.Competition {
	if comp, ok := c.Locals(competitionKey).(*models.Competition); ok {
		return comp
	}
	return nil
}

// IsCreator reports whether the principal owns the competition.
func IsCreator(p Principal, competition *models.Competition) bool {
	id := p.AccountID()
	return id != "" && competition.CreatorID != nil && *competition.CreatorID == id
}

// CanRead reports whether the principal may see management-level views of the
// competition: the creator, or any account holding an accepted Management
// row. Capability flags are not consulted for reads.
func CanRead(db *gorm.DB, p Principal, competition *models.Competition) bool {
	if IsCreator(p, competition) {
		return true
	}
	if p.Kind != PrincipalAccount {
		return false
	}
	var count int64
	db.Model(&models.Management{}).
		Where("competition_id = ? AND account_id = ? AND accepted = ?", competition.ID, p.Account.ID, true).
		Count(&count)
	return count > 0
}

// CanManage reports whether the principal may perform the given write action:
// the creator always, otherwise an accepted Management row whose capability
// flag for the action is set.
func CanManage(db *gorm.DB, p Principal, competition *models.Competition, action models.Action) bool {
	if IsCreator(p, competition) {
		return true
	}
	if p.Kind != PrincipalAccount {
		return false
	}
	var m models.Management
	err := db.First(&m, "competition_id = ? AND account_id = ?", competition.ID, p.Account.ID).Error
	if err != nil {
		return false
	}
	return m.Allows(action)
}

func loadCompetition(db *gorm.DB, id string) (*models.Competition, error) {
	var competition models.Competition
	if err := db.First(&competition, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &competition, nil
}

// LoadCompetition resolves the :id route param without any permission check,
// for public endpoints that still need the row.
func LoadCompetition(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		competition, err := loadCompetition(db, c.Params("id"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return denyNotFound(c)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		c.Locals(competitionKey, competition)
		return c.Next()
	}
}

// RequireManagementRead guards read-only management views.
func RequireManagementRead(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		competition, err := loadCompetition(db, c.Params("id"))
		if err != nil {
			return denyNotFound(c)
		}
		if !CanRead(db, GetPrincipal(c), competition) {
			return denyNotFound(c)
		}
		c.Locals(competitionKey, competition)
		return c.Next()
	}
}

// RequireManagement guards write actions behind the capability flag bound to
// the action kind.
func RequireManagement(db *gorm.DB, action models.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		competition, err := loadCompetition(db, c.Params("id"))
		if err != nil {
			return denyNotFound(c)
		}
		if !CanManage(db, GetPrincipal(c), competition, action) {
			return denyNotFound(c)
		}
		c.Locals(competitionKey, competition)
		return c.Next()
	}
}

// RequireCreator guards operations reserved to the competition owner, such as
// manager administration and deletion.
func RequireCreator(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		competition, err := loadCompetition(db, c.Params("id"))
		if err != nil {
			return denyNotFound(c)
		}
		if !IsCreator(GetPrincipal(c), competition) {
			return denyNotFound(c)
		}
		c.Locals(competitionKey, competition)
		return c.Next()
	}
}
