// Package services содержит обработку предупреждений об истекающих
// подписках: сообщение из очереди превращается в личное уведомление
// пользователю.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/telegate/subscription-gatekeeper/internal/models"
)

// MessageSender отправляет личные сообщения пользователям платформы.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// NotifierService превращает события очереди в уведомления пользователям.
type NotifierService struct {
	sender MessageSender
	log    *slog.Logger
}

// NewNotifierService создает новый экземпляр NotifierService.
func NewNotifierService(sender MessageSender, log *slog.Logger) *NotifierService {
	return &NotifierService{
		sender: sender,
		log:    log,
	}
}

// HandleExpiring обрабатывает сообщение об истекающей подписке. Ошибка
// разбора не возвращается наружу: сообщение с битым телом бесполезно
// перекладывать в очередь повторно.
func (s *NotifierService) HandleExpiring(ctx context.Context, body []byte) error {
	const op = "services.notifier.HandleExpiring"

	var info models.ExpiringInfo
	if err := json.Unmarshal(body, &info); err != nil {
		s.log.Error("dropping malformed expiring message",
			slog.String("body", string(body)),
			slog.Any("err", err))
		return nil
	}

	text := expiringText(info)
	if err := s.sender.SendMessage(ctx, info.TelegramID, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("expiry warning delivered",
		slog.Int64("telegram_id", info.TelegramID),
		slog.Int64("subscription_id", info.SubscriptionID))
	return nil
}

func expiringText(info models.ExpiringInfo) string {
	return fmt.Sprintf(
		"Ваша подписка «%s» истекает %s. Продлите её, чтобы не потерять доступ к каналу.",
		info.PlanName,
		info.EndDate.Format("02.01.2006 15:04"),
	)
}
