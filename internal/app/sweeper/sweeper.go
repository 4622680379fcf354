// Package sweeper собирает фоновый сервис обслуживания подписок:
// деактивацию истекших, отзыв доступа, предупреждения об истечении
// и сверку состава бесплатного канала.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/telegate/subscription-gatekeeper/internal/cache"
	"github.com/telegate/subscription-gatekeeper/internal/config"
	"github.com/telegate/subscription-gatekeeper/internal/rabbitmq"
	channelservice "github.com/telegate/subscription-gatekeeper/internal/services/channel"
	subservice "github.com/telegate/subscription-gatekeeper/internal/services/subscription"
	sweeperservice "github.com/telegate/subscription-gatekeeper/internal/services/sweeper"
	"github.com/telegate/subscription-gatekeeper/internal/storage/repository"
	"github.com/telegate/subscription-gatekeeper/internal/telegram"
)

// App представляет приложение свипера.
type App struct {
	sweeperService *sweeperservice.SweeperService
	conn           *amqp.Connection
	ch             *amqp.Channel
	cache          *cache.Cache
	logger         *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := db.CheckDatabaseReady(context.Background())
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения свипера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	bot := telegram.NewClient(cfg.BotToken, cfg.APIBaseURL)
	publisher := rabbitmq.NewChannelPublisher(ch)

	subscriptionService := subservice.NewSubscriptionService(db, db, db, cacheRedis, logger)
	channelService := channelservice.NewChannelService(bot, db, logger)
	sweeperService := sweeperservice.NewSweeperService(subscriptionService, channelService,
		publisher, cacheRedis, cfg.Sweeper, cfg.Telegram, logger)

	return &App{
		sweeperService: sweeperService,
		conn:           conn,
		ch:             ch,
		cache:          cacheRedis,
		logger:         logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает свипер и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	go a.sweeperService.Run(ctx)

	<-ctx.Done()

	a.logger.Info("shutting down sweeper service")

	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", slog.Any("err", err))
	}

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
