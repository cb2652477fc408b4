package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"competition-hub/auth"
	"competition-hub/models"
)

// PrincipalKind tags the identity resolved for an inbound request: anonymous,
// a platform account, or a competition participant.
type PrincipalKind int

const (
	PrincipalAnonymous PrincipalKind = iota
	PrincipalAccount
	PrincipalParticipant
)

// Principal is the resolved request identity. Exactly one variant is set.
type Principal struct {
	Kind        PrincipalKind
	Account     *models.Account
	Participant *models.Participant
}

func (p Principal) IsAnonymous() bool {
	return p.Kind == PrincipalAnonymous
}

// AccountID returns the account id or "" for non-account principals.
func (p Principal) AccountID() string {
	if p.Kind == PrincipalAccount && p.Account != nil {
		return p.Account.ID
	}
	return ""
}

const principalKey = "principal"

// GetPrincipal returns the principal resolved by Authenticate, or the
// anonymous principal when the middleware did not run.
func GetPrincipal(c *fiber.Ctx) Principal {
	if p, ok := c.Locals(principalKey).(Principal); ok {
		return p
	}
	return Principal{Kind: PrincipalAnonymous}
}

var ErrBadAuthorizationHeader = errors.New("authorization header must contain two space-delimited values")

// ParseAuthHeader extracts the raw bearer credential. An absent header or a
// scheme other than Bearer yields "" with no error so other auth schemes can
// coexist; a Bearer header that is not exactly two tokens is malformed.
func ParseAuthHeader(header string) (string, error) {
	if header == "" {
		return "", nil
	}
	parts := strings.Fields(header)
	if len(parts) == 0 {
		return "", nil
	}
	if parts[0] != "Bearer" {
		return "", nil
	}
	if len(parts) != 2 {
		return "", ErrBadAuthorizationHeader
	}
	return parts[1], nil
}

// Authenticate resolves the Authorization header to a principal and stores it
// in the request context. Token kinds are tried in a fixed order: account
// access tokens first, then participant access tokens. The two families use
// distinct identifier claims, so a token of one kind can never resolve to a
// principal of the other; the order only decides which failure message comes
// first in the log.
func Authenticate(db *gorm.DB, tokens *auth.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := ParseAuthHeader(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "bad_authorization_header",
			})
		}
		if raw == "" {
			c.Locals(principalKey, Principal{Kind: PrincipalAnonymous})
			return c.Next()
		}

		var messages []string

		accountID, err := tokens.ValidateAccountAccess(raw)
		if err == nil {
			var account models.Account
			if err := db.First(&account, "id = ? AND is_active = ?", accountID, true).Error; err != nil {
				log.Printf("🚫 [AUTH] valid account token but account %s not resolvable: %v", accountID, err)
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "account not found",
					"code":  "authentication_failed",
				})
			}
			c.Locals(principalKey, Principal{Kind: PrincipalAccount, Account: &account})
			return c.Next()
		}
		messages = append(messages, "account access: "+err.Error())

		participantID, err := tokens.ValidateParticipantAccess(raw)
		if err == nil {
			var participant models.Participant
			if err := db.First(&participant, "id = ?", participantID).Error; err != nil {
				log.Printf("🚫 [AUTH] valid participant token but participant %s not resolvable: %v", participantID, err)
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "participant not found",
					"code":  "authentication_failed",
				})
			}
			c.Locals(principalKey, Principal{Kind: PrincipalParticipant, Participant: &participant})
			return c.Next()
		}
		messages = append(messages, "participant access: "+err.Error())

		// Per-kind details stay in the log; the response does not reveal
		// which family almost matched.
		log.Printf("🚫 [AUTH] token not valid for any kind: %s", strings.Join(messages, "; "))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "given token not valid for any token type",
			"code":  "invalid_token",
		})
	}
}

// RequireAccount rejects requests whose principal is not a platform account.
func RequireAccount() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetPrincipal(c).Kind != PrincipalAccount {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "account authentication required",
				"code":  "authentication_failed",
			})
		}
		return c.Next()
	}
}

// RequireParticipant rejects requests whose principal is not a participant.
func RequireParticipant() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetPrincipal(c).Kind != PrincipalParticipant {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "participant authentication required",
				"code":  "authentication_failed",
			})
		}
		return c.Next()
	}
}
