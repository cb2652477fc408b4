package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Two token families share a signing key but are never interchangeable:
// account tokens carry the "account_id" claim, participant tokens carry
// "participant_id". Validation requires the exact claim and token_type for
// the family being checked, so a participant token presented where an
// account token is expected fails as invalid rather than resolving to the
// wrong principal.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	AccountIDClaim     = "account_id"
	ParticipantIDClaim = "participant_id"
)

var ErrTokenInvalid = errors.New("token invalid")

type TokenService struct {
	secret               []byte
	AccountAccessTTL     time.Duration
	AccountRefreshTTL    time.Duration
	ParticipantAccessTTL time.Duration
}

// NewTokenServiceFromEnv reads JWT_SECRET (required) and the optional
// lifetime overrides ACCESS_TOKEN_MINUTES, REFRESH_TOKEN_HOURS and
// PARTICIPANT_TOKEN_MINUTES.
func NewTokenServiceFromEnv() (*TokenService, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET environment variable is not set")
	}
	return &TokenService{
		secret:               []byte(secret),
		AccountAccessTTL:     envMinutes("ACCESS_TOKEN_MINUTES", 30),
		AccountRefreshTTL:    envHours("REFRESH_TOKEN_HOURS", 24*7),
		ParticipantAccessTTL: envMinutes("PARTICIPANT_TOKEN_MINUTES", 15),
	}, nil
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret:               []byte(secret),
		AccountAccessTTL:     30 * time.Minute,
		AccountRefreshTTL:    24 * 7 * time.Hour,
		ParticipantAccessTTL: 15 * time.Minute,
	}
}

func envMinutes(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return time.Duration(def) * time.Minute
}

func envHours(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Hour
		}
	}
	return time.Duration(def) * time.Hour
}

func (t *TokenService) mint(idClaim, id, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		idClaim:      id,
		"token_type": tokenType,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *TokenService) MintAccountAccess(accountID string) (string, error) {
	return t.mint(AccountIDClaim, accountID, TokenTypeAccess, t.AccountAccessTTL)
}

func (t *TokenService) MintAccountRefresh(accountID string) (string, error) {
	return t.mint(AccountIDClaim, accountID, TokenTypeRefresh, t.AccountRefreshTTL)
}

func (t *TokenService) MintParticipantAccess(participantID string) (string, error) {
	return t.mint(ParticipantIDClaim, participantID, TokenTypeAccess, t.ParticipantAccessTTL)
}

func (t *TokenService) parse(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unreadable claims", ErrTokenInvalid)
	}
	return claims, nil
}

func (t *TokenService) validate(raw, idClaim, wantType string) (string, error) {
	claims, err := t.parse(raw)
	if err != nil {
		return "", err
	}
	tokenType, _ := claims["token_type"].(string)
	if tokenType != wantType {
		return "", fmt.Errorf("%w: token_type %q, want %q", ErrTokenInvalid, tokenType, wantType)
	}
	id, _ := claims[idClaim].(string)
	if id == "" {
		return "", fmt.Errorf("%w: missing %s claim", ErrTokenInvalid, idClaim)
	}
	return id, nil
}

// ValidateAccountAccess returns the account id carried by a valid account
// access token.
func (t *TokenService) ValidateAccountAccess(raw string) (string, error) {
	return t.validate(raw, AccountIDClaim, TokenTypeAccess)
}

// ValidateAccountRefresh returns the account id carried by a valid refresh
// token.
func (t *TokenService) ValidateAccountRefresh(raw string) (string, error) {
	return t.validate(raw, AccountIDClaim, TokenTypeRefresh)
}

// ValidateParticipantAccess returns the participant id carried by a valid
// participant access token. There is no participant refresh family.
func (t *TokenService) ValidateParticipantAccess(raw string) (string, error) {
	return t.validate(raw, ParticipantIDClaim, TokenTypeAccess)
}
