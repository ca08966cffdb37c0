package providers

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"alivecheck-backend/internal/config"
	"alivecheck-backend/internal/dispatch"
	"alivecheck-backend/internal/logging"
)

// PushProvider sends push notifications via Firebase Cloud Messaging.
type PushProvider struct {
	client  *messaging.Client
	limiter *rate.Limiter
	logger  *logging.Logger
}

func NewPushProvider(ctx context.Context, cfg config.Config, logger *logging.Logger) (*PushProvider, error) {
	var opts []option.ClientOption
	if cfg.Push.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Push.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fcm client: %w", err)
	}

	return &PushProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Push.RatePerSecond)), cfg.Push.RatePerSecond),
		logger:  logger,
	}, nil
}

func (p *PushProvider) SendPush(ctx context.Context, token, title, body string, data map[string]string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("push rate limit wait failed: %w", err)
	}

	payload := map[string]string{"click_action": "FLUTTER_NOTIFICATION_CLICK"}
	for k, v := range data {
		payload[k] = v
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: payload,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:    "alivecheck_alerts",
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	msgID, err := p.client.Send(ctx, msg)
	if err != nil {
		if messaging.IsRegistrationTokenNotRegistered(err) {
			return "", fmt.Errorf("token rejected by fcm: %w", dispatch.ErrInvalidToken)
		}
		return "", fmt.Errorf("failed to send push: %w", err)
	}

	p.logger.Debugf("FCM message sent: %s", msgID)
	return msgID, nil
}
