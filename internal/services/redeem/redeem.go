// Package services содержит сценарий погашения токена: регистрация
// пользователя, списание токена, активация подписки и выдача приглашения
// в платный канал.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/telegate/subscription-gatekeeper/internal/config"
	"github.com/telegate/subscription-gatekeeper/internal/lib/sl"
	"github.com/telegate/subscription-gatekeeper/internal/models"
)

// TokenConsumer проверяет токен и атомарно помечает его использованным.
type TokenConsumer interface {
	Redeem(ctx context.Context, value string) (*models.Token, error)
	Consume(ctx context.Context, value string, consumerID int64) (*models.Token, error)
}

// SubscriptionActivator создает активную подписку на тариф.
type SubscriptionActivator interface {
	Activate(ctx context.Context, userID, planID int64) (*models.Subscription, error)
}

// UserRepository регистрирует и находит пользователей платформы.
type UserRepository interface {
	UpsertUser(ctx context.Context, user models.User) (*models.User, error)
}

// ChannelAccess выдает приглашения и проверяет членство в каналах.
type ChannelAccess interface {
	IssueInvite(ctx context.Context, chatID int64) (string, bool)
	CheckMembership(ctx context.Context, chatID, telegramID int64) bool
	SyncMembershipFlag(ctx context.Context, chatID int64, user *models.User) (bool, error)
}

// RedeemResult результат погашения токена.
type RedeemResult struct {
	Subscription *models.Subscription `json:"subscription"`
	InviteLink   string               `json:"invite_link,omitempty"`
}

// AccessResult результат проверки доступа к бесплатному каналу.
type AccessResult struct {
	HasAccess  bool   `json:"has_access"`
	InviteLink string `json:"invite_link,omitempty"`
}

// RedeemService реализует сценарии погашения токена и проверки доступа.
type RedeemService struct {
	tokens  TokenConsumer
	subs    SubscriptionActivator
	users   UserRepository
	channel ChannelAccess
	tg      config.Telegram
	log     *slog.Logger
}

// NewRedeemService создает новый экземпляр RedeemService.
func NewRedeemService(tokens TokenConsumer, subs SubscriptionActivator,
	users UserRepository, channel ChannelAccess, tg config.Telegram, log *slog.Logger) *RedeemService {
	return &RedeemService{
		tokens:  tokens,
		subs:    subs,
		users:   users,
		channel: channel,
		tg:      tg,
		log:     log,
	}
}

// Redeem проводит полный сценарий погашения: регистрирует пользователя,
// списывает токен, активирует подписку на тариф токена и выдает приглашение
// в платный канал. Токен списывается до активации: погашенный токен не
// возвращается, даже если последующие шаги не удались.
func (s *RedeemService) Redeem(ctx context.Context, req models.DummyRedeem) (*RedeemResult, error) {
	const op = "services.redeem.Redeem"

	user, err := s.users.UpsertUser(ctx, models.User{
		TelegramID: req.TelegramID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		IsAdmin:    s.tg.IsAdmin(req.TelegramID),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Чистая проверка отсекает заведомо недействительные токены до списания.
	// Гонку одновременных погашений разрешает только Consume.
	if _, err := s.tokens.Redeem(ctx, req.Token); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.Consume(ctx, req.Token, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := s.subs.Activate(ctx, user.ID, token.PlanID)
	if err != nil {
		// Токен уже списан. Погашение не откатывается, инцидент разбирается
		// по логам вручную.
		s.log.Error("token consumed but activation failed",
			slog.String("token", token.Value),
			slog.Int64("user_id", user.ID),
			sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &RedeemResult{Subscription: sub}
	if link, ok := s.channel.IssueInvite(ctx, s.tg.VIPChannelID); ok {
		result.InviteLink = link
	} else {
		s.log.Warn("subscription activated without invite link",
			slog.Int64("user_id", user.ID))
	}

	s.log.Info("token redeemed",
		sl.TelegramID(req.TelegramID),
		slog.Int64("subscription_id", sub.ID))
	return result, nil
}

// CheckAccess проверяет доступ пользователя к бесплатному каналу. При
// открытом доступе проверка членства пропускается. Пользователю без
// членства выдается новая ссылка-приглашение.
func (s *RedeemService) CheckAccess(ctx context.Context, req models.DummyAccessCheck) (*AccessResult, error) {
	const op = "services.redeem.CheckAccess"

	user, err := s.users.UpsertUser(ctx, models.User{
		TelegramID: req.TelegramID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		IsAdmin:    s.tg.IsAdmin(req.TelegramID),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.tg.FreeChannelOpenAccess {
		return &AccessResult{HasAccess: true}, nil
	}

	inChannel, err := s.channel.SyncMembershipFlag(ctx, s.tg.FreeChannelID, user)
	if err != nil {
		s.log.Warn("failed to persist membership flag", sl.Err(err))
	}
	if inChannel {
		return &AccessResult{HasAccess: true}, nil
	}

	result := &AccessResult{HasAccess: false}
	if link, ok := s.channel.IssueInvite(ctx, s.tg.FreeChannelID); ok {
		result.InviteLink = link
	}
	return result, nil
}
