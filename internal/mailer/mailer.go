// Package mailer sends the rendered report over SMTP and owns the
// distribution configuration.
package mailer

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Send delivers the HTML report to every configured recipient over
// STARTTLS-capable SMTP with plain auth. The password comes from the caller
// (environment or secret store), never from config.
func Send(cfg Config, htmlBody, password string) error {
	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	auth := smtp.PlainAuth("", cfg.From, password, cfg.SMTPHost)

	msg := buildMessage(cfg, htmlBody)
	recipients := cfg.Recipients()

	if err := smtp.SendMail(addr, auth, cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}

	log.Printf("[MAIL] Sent report to %d recipients via %s", len(recipients), addr)
	return nil
}

func buildMessage(cfg Config, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(cfg.To, ", "))
	if len(cfg.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(cfg.CC, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", cfg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
