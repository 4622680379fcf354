// Package services содержит фоновый свипер: деактивацию истекших подписок
// с отзывом доступа к платному каналу, рассылку предупреждений об истечении
// и сверку состава бесплатного канала.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/telegate/subscription-gatekeeper/internal/config"
	"github.com/telegate/subscription-gatekeeper/internal/lib/sl"
	"github.com/telegate/subscription-gatekeeper/internal/models"
	"github.com/telegate/subscription-gatekeeper/internal/rabbitmq"
)

var (
	sweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_subscriptions_swept_total",
		Help: "Number of expired subscriptions deactivated by the sweeper.",
	})
	revokeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_access_revoke_failures_total",
		Help: "Number of failed channel access revocations.",
	})
	warningsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_expiry_warnings_published_total",
		Help: "Number of expiry warnings published to the notification queue.",
	})
)

// SubscriptionSweeper деактивирует истекшие подписки и перечисляет истекающие.
type SubscriptionSweeper interface {
	SweepExpired(ctx context.Context) ([]*models.SweptSubscription, error)
	ListExpiringWithin(ctx context.Context, window time.Duration) ([]*models.ExpiringInfo, error)
}

// AccessRevoker отзывает доступ к каналам и сверяет состав бесплатного канала.
type AccessRevoker interface {
	RevokeAccess(ctx context.Context, chatID, telegramID int64) bool
	ReconcileFreeChannelRoster(ctx context.Context, freeChannelID int64) ([]*models.User, error)
}

// Publisher публикует сообщения в брокер уведомлений.
type Publisher interface {
	Publish(exchange, routingKey string, message any) error
}

// WarnCache запоминает, по каким подпискам предупреждение уже отправлено.
type WarnCache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// SweeperService запускает периодические циклы обслуживания подписок.
type SweeperService struct {
	subs      SubscriptionSweeper
	channel   AccessRevoker
	publisher Publisher
	warned    WarnCache
	cfg       config.Sweeper
	tg        config.Telegram
	log       *slog.Logger
}

// NewSweeperService создает новый экземпляр SweeperService.
func NewSweeperService(subs SubscriptionSweeper, channel AccessRevoker,
	publisher Publisher, warned WarnCache, cfg config.Sweeper, tg config.Telegram,
	log *slog.Logger) *SweeperService {
	return &SweeperService{
		subs:      subs,
		channel:   channel,
		publisher: publisher,
		warned:    warned,
		cfg:       cfg,
		tg:        tg,
		log:       log,
	}
}

// Run запускает циклы свипера и блокируется до отмены контекста. Ошибки
// отдельных циклов логируются и не останавливают свипер.
func (s *SweeperService) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(s.cfg.SweepInterval)
	defer sweepTicker.Stop()
	reconcileTicker := time.NewTicker(s.cfg.ReconcileInterval)
	defer reconcileTicker.Stop()

	s.log.Info("sweeper started",
		slog.Duration("sweep_interval", s.cfg.SweepInterval),
		slog.Duration("reconcile_interval", s.cfg.ReconcileInterval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-sweepTicker.C:
			if _, err := s.SweepCycle(ctx); err != nil {
				s.log.Error("sweep cycle failed", sl.Err(err))
			}
			if err := s.WarnExpiring(ctx); err != nil {
				s.log.Error("expiry warning cycle failed", sl.Err(err))
			}
		case <-reconcileTicker.C:
			confirmed, err := s.channel.ReconcileFreeChannelRoster(ctx, s.tg.FreeChannelID)
			if err != nil {
				s.log.Error("roster reconciliation failed", sl.Err(err))
				continue
			}
			s.log.Info("free channel roster reconciled", slog.Int("confirmed", len(confirmed)))
		}
	}
}

// SweepCycle деактивирует истекшие подписки и выгоняет их владельцев из
// платного канала. Возвращает число деактивированных подписок. Сбой отзыва
// по одному пользователю не мешает остальным: подписка в хранилище уже
// деактивирована, повторный выгон невозможен только через ручное
// вмешательство.
func (s *SweeperService) SweepCycle(ctx context.Context) (int, error) {
	const op = "services.sweeper.SweepCycle"

	swept, err := s.subs.SweepExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	sweptTotal.Add(float64(len(swept)))

	for _, sub := range swept {
		if !s.channel.RevokeAccess(ctx, s.tg.VIPChannelID, sub.TelegramID) {
			revokeFailures.Inc()
			s.log.Error("failed to revoke channel access",
				slog.Int64("subscription_id", sub.ID),
				sl.TelegramID(sub.TelegramID))
		}
	}
	return len(swept), nil
}

func warnCacheKey(subscriptionID int64) string {
	return fmt.Sprintf("notify:expiring:%d", subscriptionID)
}

// WarnExpiring публикует предупреждения об истекающих подписках в очередь
// уведомлений. Кеш защищает от повторной отправки в пределах окна
// предупреждения.
func (s *SweeperService) WarnExpiring(ctx context.Context) error {
	const op = "services.sweeper.WarnExpiring"

	expiring, err := s.subs.ListExpiringWithin(ctx, s.cfg.ExpiryWarnWindow)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, info := range expiring {
		key := warnCacheKey(info.SubscriptionID)
		var sent bool
		if found, err := s.warned.Get(key, &sent); err == nil && found {
			continue
		}

		if err := s.publisher.Publish(rabbitmq.Exchange, rabbitmq.ExpiringRoutingKey, info); err != nil {
			s.log.Error("failed to publish expiry warning",
				slog.Int64("subscription_id", info.SubscriptionID),
				sl.Err(err))
			continue
		}
		warningsPublished.Inc()

		if err := s.warned.Set(key, true, s.cfg.ExpiryWarnWindow); err != nil {
			s.log.Warn("failed to mark warning as sent", slog.String("key", key), sl.Err(err))
		}
	}
	return nil
}
