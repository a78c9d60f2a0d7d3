package auth

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

// Mailer delivers second-factor codes to users.
type Mailer interface {
	SendTwoFactorCode(to, code string) error
}

// SMTPMailer sends codes through a real SMTP relay.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: from}, nil
}

func (m *SMTPMailer) SendTwoFactorCode(to, code string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject("Your Two-Factor Authentication Code")
	msg.SetBodyString(mail.TypeTextPlain, "Your two-factor authentication code is: "+code)

	if err := m.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send 2fa code: %w", err)
	}
	log.Info().Str("module", "auth.mailer").Str("to", to).Msg("2FA code email sent")
	return nil
}

// LogMailer is the fallback when no SMTP relay is configured: the code
// only lands in the server log. Not for production.
type LogMailer struct{}

func (LogMailer) SendTwoFactorCode(to, code string) error {
	log.Warn().Str("module", "auth.mailer").Str("to", to).Str("code", code).
		Msg("SMTP not configured, 2FA code logged instead of sent")
	return nil
}
