// Package notifier собирает сервис доставки уведомлений: потребителя
// очереди предупреждений и клиента Telegram для личных сообщений.
package notifier

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/telegate/subscription-gatekeeper/internal/config"
	"github.com/telegate/subscription-gatekeeper/internal/rabbitmq"
	notifierservice "github.com/telegate/subscription-gatekeeper/internal/services/notifier"
	"github.com/telegate/subscription-gatekeeper/internal/telegram"
)

// App представляет приложение доставки уведомлений.
type App struct {
	conn            *amqp.Connection
	ch              *amqp.Channel
	notifierService *notifierservice.NotifierService
	logger          *slog.Logger
}

// New создает новый экземпляр приложения доставки уведомлений.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		conn.Close()
		return nil, err
	}

	bot := telegram.NewClient(cfg.BotToken, cfg.APIBaseURL)
	notifierService := notifierservice.NewNotifierService(bot, logger)

	return &App{
		conn:            conn,
		ch:              ch,
		notifierService: notifierService,
		logger:          logger,
	}, nil
}

// Run подписывается на очередь предупреждений и блокируется до отмены
// контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.Consume(ctx, a.ch, rabbitmq.ExpiringQueue, a.logger, func(body []byte) error {
		return a.notifierService.HandleExpiring(ctx, body)
	})
	if err != nil {
		return err
	}

	a.logger.Info("notifier started", slog.String("queue", rabbitmq.ExpiringQueue))

	<-ctx.Done()

	a.logger.Info("shutting down notifier service")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
