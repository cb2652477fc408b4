package utils

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
)

// Mailer delivers notification emails. Fire-and-forget from the caller's
// perspective — no delivery confirmation is tracked.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends through a plain SMTP relay.
type SMTPMailer struct {
	Addr string
	From string
	auth smtp.Auth
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.From, to, subject, body)
	return smtp.SendMail(m.Addr, m.auth, m.From, []string{to}, []byte(msg))
}

// ConsoleMailer logs instead of sending. Default in development so OTP codes
// show up in the server log. The code itself is the secret being delivered,
// so logging it here is intentional.
type ConsoleMailer struct{}

func (ConsoleMailer) Send(to, subject, body string) error {
	log.Printf("📧 [MAIL] to=%s subject=%q body=%q", to, subject, body)
	return nil
}

// NewMailerFromEnv picks SMTP when SMTP_ADDR is configured, console output
// otherwise.
func NewMailerFromEnv() Mailer {
	addr := os.Getenv("SMTP_ADDR")
	if addr == "" {
		log.Println("⚠️  SMTP_ADDR not set, emails will be logged to console")
		return ConsoleMailer{}
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "no-reply@localhost"
	}
	var auth smtp.Auth
	if user := os.Getenv("SMTP_USER"); user != "" {
		auth = smtp.PlainAuth("", user, os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_HOST"))
	}
	return &SMTPMailer{Addr: addr, From: from, auth: auth}
}
