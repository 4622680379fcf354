// Package gatekeeper собирает HTTP-сервис управления тарифами, токенами
// активации и подписками: хранилище, кеш, клиент Telegram, брокер
// уведомлений и все обработчики.
package gatekeeper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/telegate/subscription-gatekeeper/internal/cache"
	"github.com/telegate/subscription-gatekeeper/internal/config"
	"github.com/telegate/subscription-gatekeeper/internal/migrations"
	"github.com/telegate/subscription-gatekeeper/internal/rabbitmq"
	channelservice "github.com/telegate/subscription-gatekeeper/internal/services/channel"
	redeemservice "github.com/telegate/subscription-gatekeeper/internal/services/redeem"
	subservice "github.com/telegate/subscription-gatekeeper/internal/services/subscription"
	sweeperservice "github.com/telegate/subscription-gatekeeper/internal/services/sweeper"
	tokenservice "github.com/telegate/subscription-gatekeeper/internal/services/token"
	"github.com/telegate/subscription-gatekeeper/internal/storage/repository"
	"github.com/telegate/subscription-gatekeeper/internal/telegram"
)

// App инкапсулирует HTTP-сервер и внешние соединения сервиса.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	cache    *cache.Cache
	rabbitmq *amqp.Connection
}

// New создает приложение: подключается к хранилищу, применяет миграции,
// инициализирует кеш, брокер и клиента Telegram, собирает сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	rabbitCh, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewChannelPublisher(rabbitCh)

	bot := telegram.NewClient(cfg.BotToken, cfg.APIBaseURL)

	tokenService := tokenservice.NewTokenService(db, db, logger)
	subscriptionService := subservice.NewSubscriptionService(db, db, db, cacheRedis, logger)
	channelService := channelservice.NewChannelService(bot, db, logger)
	redeemService := redeemservice.NewRedeemService(tokenService, subscriptionService,
		db, channelService, cfg.Telegram, logger)
	sweeperService := sweeperservice.NewSweeperService(subscriptionService, channelService,
		publisher, cacheRedis, cfg.Sweeper, cfg.Telegram, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, &Services{
		Tokens:        tokenService,
		Subscriptions: subscriptionService,
		Redeem:        redeemService,
		Sweeper:       sweeperService,
		Storage:       db,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		cache:    cacheRedis,
		rabbitmq: rabbitConn,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до отмены контекста или ошибки
// сервера. При остановке соединения закрываются корректно.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		a.cache.Close()
		a.rabbitmq.Close()
		return err
	}
}
