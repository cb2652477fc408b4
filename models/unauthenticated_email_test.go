package models

import (
	"testing"
	"time"
)

func TestVerifyOTP(t *testing.T) {
	now := time.Now()
	window := 5 * time.Minute
	pending := UnauthenticatedEmail{Email: "someone@example.com", OTP: "123456", CreatedAt: now}

	if !pending.VerifyOTP("123456", now.Add(time.Minute), window) {
		t.Error("live code rejected")
	}
	if pending.VerifyOTP("654321", now.Add(time.Minute), window) {
		t.Error("wrong code accepted")
	}
	if pending.VerifyOTP("123456", now.Add(window), window) {
		t.Error("expired code accepted")
	}
	if pending.VerifyOTP("12345", now, window) {
		t.Error("five-digit code accepted")
	}
	if pending.VerifyOTP("12345a", now, window) {
		t.Error("non-numeric code accepted")
	}
}

func TestOTPTimeRemaining(t *testing.T) {
	now := time.Now()
	pending := UnauthenticatedEmail{CreatedAt: now}

	if got := pending.OTPTimeRemaining(now.Add(2*time.Minute), 5*time.Minute); got != 3*time.Minute {
		t.Errorf("remaining = %v, want 3m", got)
	}
	if got := pending.OTPTimeRemaining(now.Add(6*time.Minute), 5*time.Minute); got >= 0 {
		t.Errorf("remaining = %v, want negative after expiry", got)
	}
}
