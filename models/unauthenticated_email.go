package models

import (
	"regexp"
	"time"
)

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// UnauthenticatedEmail is a pending email-ownership claim. One live row per
// email; replaced wholesale whenever a new code is requested.
type UnauthenticatedEmail struct {
	Email      string    `gorm:"primaryKey" json:"email"`
	OTP        string    `gorm:"not null" json:"-"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	IsVerified bool      `gorm:"default:false;not null" json:"is_verified"`
}

// VerifyOTP reports whether the given code is the live one and still inside
// the validity window. It never mutates the record.
func (u *UnauthenticatedEmail) VerifyOTP(otp string, now time.Time, window time.Duration) bool {
	if !otpPattern.MatchString(otp) {
		return false
	}
	return now.Sub(u.CreatedAt) < window && otp == u.OTP
}

// OTPTimeRemaining is negative once the code has expired.
func (u *UnauthenticatedEmail) OTPTimeRemaining(now time.Time, window time.Duration) time.Duration {
	return u.CreatedAt.Add(window).Sub(now)
}
