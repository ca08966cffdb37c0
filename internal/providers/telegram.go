package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"alivecheck-backend/internal/config"
	"alivecheck-backend/internal/logging"
	"alivecheck-backend/internal/utils"
)

// TelegramProvider sends alert messages to registered chats.
type TelegramProvider struct {
	bot     *bot.Bot
	limiter *rate.Limiter
	logger  *logging.Logger
}

func NewTelegramProvider(cfg config.Config, logger *logging.Logger) (*TelegramProvider, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("missing Telegram configuration: BotToken is empty")
	}

	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	return &TelegramProvider{
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Telegram.RatePerSecond)), cfg.Telegram.RatePerSecond),
		logger:  logger,
	}, nil
}

func (t *TelegramProvider) SendTelegram(ctx context.Context, chatID int64, text string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("telegram rate limit wait failed: %w", err)
	}

	var msgID string
	err := utils.Retry(t.logger, 3, time.Second, func() error {
		m, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: "Markdown",
		})
		if err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", chatID, err)
		}
		msgID = strconv.Itoa(m.ID)
		return nil
	})
	return msgID, err
}
