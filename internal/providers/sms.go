package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"alivecheck-backend/internal/config"
	"alivecheck-backend/internal/logging"
)

// SMSProvider sends SMS via Twilio.
type SMSProvider struct {
	client *twilio.RestClient
	from   string
	logger *logging.Logger
}

func NewSMSProvider(cfg config.Config, logger *logging.Logger) (*SMSProvider, error) {
	if cfg.SMS.AccountSID == "" || cfg.SMS.AuthToken == "" || cfg.SMS.FromNumber == "" {
		return nil, fmt.Errorf("missing SMS configuration: AccountSID, AuthToken, or FromNumber is empty")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.SMS.AccountSID,
		Password: cfg.SMS.AuthToken,
	})

	return &SMSProvider{client: client, from: cfg.SMS.FromNumber, logger: logger}, nil
}

func (s *SMSProvider) SendSMS(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !strings.HasPrefix(to, "+") {
		return "", fmt.Errorf("invalid phone number: %s", to)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}

	msgID := ""
	if resp.Sid != nil {
		msgID = *resp.Sid
	}
	s.logger.Debugf("SMS sent to %s: %s", to, msgID)
	return msgID, nil
}
