package providers

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"alivecheck-backend/internal/config"
	"alivecheck-backend/internal/logging"
)

// EmailProvider sends alert emails over SMTP.
type EmailProvider struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
	logger   *logging.Logger
}

func NewEmailProvider(cfg config.Config, logger *logging.Logger) (*EmailProvider, error) {
	if cfg.Email.SMTPServer == "" || cfg.Email.SMTPPort == 0 || cfg.Email.Username == "" || cfg.Email.Password == "" {
		return nil, fmt.Errorf("missing email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}

	fromName := cfg.Email.FromName
	if fromName == "" {
		fromName = "AliveCheck"
	}

	return &EmailProvider{
		dialer:   gomail.NewDialer(cfg.Email.SMTPServer, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password),
		from:     cfg.Email.Username,
		fromName: fromName,
		logger:   logger,
	}, nil
}

func (e *EmailProvider) SendEmail(ctx context.Context, to, subject, textBody, htmlBody string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !strings.Contains(to, "@") {
		return "", fmt.Errorf("invalid email address: %s", to)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", e.from, e.fromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	if htmlBody != "" {
		msg.AddAlternative("text/html", htmlBody)
	}

	if err := e.dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	e.logger.Debugf("Email sent to %s", to)
	// SMTP gives no provider message id back.
	return "", nil
}
