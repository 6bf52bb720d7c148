package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"vcspos-server/utils"
)

// EmailCodeSender delivers login codes over plain SMTP. STARTTLS is
// negotiated by net/smtp when the server offers it.
type EmailCodeSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (s *EmailCodeSender) Configured() bool {
	return s.Host != "" && s.From != ""
}

func (s *EmailCodeSender) Send(_ context.Context, destination, code string) error {
	if !s.Configured() {
		return fmt.Errorf("smtp is not configured")
	}

	subject := "Your login code"
	body := fmt.Sprintf(
		"Your one-time login code is %s.\r\n\r\n"+
			"It expires in 5 minutes. If you did not request this code, you can ignore this message.\r\n",
		code)

	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + destination,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	addr := s.Host + ":" + s.Port
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	if err := smtp.SendMail(addr, auth, s.From, []string{destination}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *EmailCodeSender) Masked(destination string) string {
	return utils.MaskEmail(destination)
}
