// Package services содержит бизнес-логику контроля доступа к
// Telegram-каналам: проверку членства, выдачу приглашений и отзыв доступа.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/telegate/subscription-gatekeeper/internal/lib/sl"
	"github.com/telegate/subscription-gatekeeper/internal/models"
	"github.com/telegate/subscription-gatekeeper/internal/telegram"
)

// MembershipProvider описывает операции Bot API, нужные для контроля доступа.
type MembershipProvider interface {
	GetChatMember(ctx context.Context, chatID, userID int64) (*telegram.ChatMember, error)
	CreateChatInviteLink(ctx context.Context, chatID int64, memberLimit int) (*telegram.ChatInviteLink, error)
	BanChatMember(ctx context.Context, chatID, userID int64) error
	UnbanChatMember(ctx context.Context, chatID, userID int64) error
}

// UserRepository обновляет флаг членства пользователей в бесплатном канале.
type UserRepository interface {
	SetFreeChannelFlag(ctx context.Context, userID int64, inChannel bool) (int, error)
	ListFreeChannelMembers(ctx context.Context) ([]*models.User, error)
}

// ChannelService реализует контроль доступа к каналам платформы.
type ChannelService struct {
	bot   MembershipProvider
	users UserRepository
	log   *slog.Logger
}

// NewChannelService создает новый экземпляр ChannelService.
func NewChannelService(bot MembershipProvider, users UserRepository, log *slog.Logger) *ChannelService {
	return &ChannelService{
		bot:   bot,
		users: users,
		log:   log,
	}
}

// CheckMembership сообщает, состоит ли пользователь в канале. Любая ошибка
// Bot API трактуется как отсутствие членства: при недоступности платформы
// доступ закрыт, а не открыт.
func (s *ChannelService) CheckMembership(ctx context.Context, chatID, telegramID int64) bool {
	member, err := s.bot.GetChatMember(ctx, chatID, telegramID)
	if err != nil {
		s.log.Warn("membership check failed, treating as non-member",
			sl.ChatID(chatID),
			sl.TelegramID(telegramID),
			sl.Err(err))
		return false
	}

	switch member.Status {
	case telegram.StatusLeft, telegram.StatusKicked, telegram.StatusBanned:
		return false
	}
	return true
}

// SyncMembershipFlag проверяет членство пользователя в канале и сохраняет
// результат в его профиле.
func (s *ChannelService) SyncMembershipFlag(ctx context.Context, chatID int64, user *models.User) (bool, error) {
	const op = "services.channel.SyncMembershipFlag"

	inChannel := s.CheckMembership(ctx, chatID, user.TelegramID)
	if _, err := s.users.SetFreeChannelFlag(ctx, user.ID, inChannel); err != nil {
		return inChannel, fmt.Errorf("%s: %w", op, err)
	}
	return inChannel, nil
}

// IssueInvite создает одноразовую ссылку-приглашение в канал, пригодную
// ровно для одного вступления без подтверждения администратором.
// Возвращает ссылку и признак успеха: при ошибке Bot API ссылка не выдается.
func (s *ChannelService) IssueInvite(ctx context.Context, chatID int64) (string, bool) {
	link, err := s.bot.CreateChatInviteLink(ctx, chatID, 1)
	if err != nil {
		s.log.Error("failed to create invite link",
			sl.ChatID(chatID),
			sl.Err(err))
		return "", false
	}
	return link.InviteLink, true
}

// RevokeAccess выгоняет пользователя из канала: бан немедленно удаляет его,
// последующий разбан снимает запрет, чтобы пользователь мог вернуться по
// новой ссылке после продления. Возвращает false, если выгнать не удалось.
func (s *ChannelService) RevokeAccess(ctx context.Context, chatID, telegramID int64) bool {
	if err := s.bot.BanChatMember(ctx, chatID, telegramID); err != nil {
		s.log.Error("failed to kick user from channel",
			sl.ChatID(chatID),
			sl.TelegramID(telegramID),
			sl.Err(err))
		return false
	}
	if err := s.bot.UnbanChatMember(ctx, chatID, telegramID); err != nil {
		// Пользователь уже удален из канала, но остался в бан-листе и не
		// сможет вернуться по ссылке. Требует ручного вмешательства.
		s.log.Error("kicked user left in ban list",
			sl.ChatID(chatID),
			sl.TelegramID(telegramID),
			sl.Err(err))
		return false
	}
	return true
}

// ReconcileFreeChannelRoster сверяет сохраненные флаги членства в бесплатном
// канале с фактическим состоянием, сбрасывает флаги ушедших и возвращает
// список пользователей, чье членство подтвердилось. Ошибка по одному
// пользователю не прерывает обход остальных.
func (s *ChannelService) ReconcileFreeChannelRoster(ctx context.Context, freeChannelID int64) ([]*models.User, error) {
	const op = "services.channel.ReconcileFreeChannelRoster"

	members, err := s.users.ListFreeChannelMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	confirmed := make([]*models.User, 0, len(members))
	var corrected int
	for _, user := range members {
		if s.CheckMembership(ctx, freeChannelID, user.TelegramID) {
			confirmed = append(confirmed, user)
			continue
		}
		if _, err := s.users.SetFreeChannelFlag(ctx, user.ID, false); err != nil {
			s.log.Error("failed to clear membership flag",
				slog.Int64("user_id", user.ID),
				sl.Err(err))
			continue
		}
		corrected++
	}

	if corrected > 0 {
		s.log.Info("reconciled free channel roster", slog.Int("corrected", corrected))
	}
	return confirmed, nil
}
