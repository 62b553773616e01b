package notify

import (
	"context"
	"fmt"

	"mission_rewards/internal/model"
	"mission_rewards/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type TelegramConfig struct {
	BotToken     string `mapstructure:"botToken"`
	ReviewChatID int64  `mapstructure:"reviewChatId"`
	Debug        bool   `mapstructure:"debug"`
	QueueSize    int    `mapstructure:"queueSize"`
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ReviewAlerts posts a message to the review chat whenever a run reaches
// pending_review. Messages are queued and sent by Start.
type ReviewAlerts struct {
	bot    sender
	chatID int64
	queue  chan *model.MissionRun
}

func NewReviewAlerts(cfg TelegramConfig) (*ReviewAlerts, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return newReviewAlerts(bot, cfg), nil
}

func newReviewAlerts(bot sender, cfg TelegramConfig) *ReviewAlerts {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	return &ReviewAlerts{
		bot:    bot,
		chatID: cfg.ReviewChatID,
		queue:  make(chan *model.MissionRun, size),
	}
}

func (a *ReviewAlerts) RunChanged(_ context.Context, run *model.MissionRun) {
	if run.Status != model.RunPendingReview {
		return
	}
	select {
	case a.queue <- run:
	default:
		logger.Logger().Warn("review alert queue full, dropping",
			zap.String("run_id", run.ID.String()))
	}
}

// Start sends queued alerts until ctx is done.
func (a *ReviewAlerts) Start(ctx context.Context) {
	for {
		select {
		case run := <-a.queue:
			if _, err := a.bot.Send(tgbotapi.NewMessage(a.chatID, reviewText(run))); err != nil {
				logger.Logger().Error("failed to send review alert",
					zap.String("run_id", run.ID.String()), zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func reviewText(run *model.MissionRun) string {
	text := fmt.Sprintf("Run %s is waiting for review\nuser: %d\nmission: %s\nreward: %d",
		run.ID, run.UserID, run.MissionID, run.RewardAmount)
	if run.SocialPostURL != nil {
		text += "\npost: " + *run.SocialPostURL
	}
	return text
}
