package models

import "time"

// Subscription представляет подписку пользователя на тариф.
// Поле EndDate может быть nil — это означает бессрочную подписку.
// EndDate вычисляется один раз при активации и больше не пересчитывается;
// IsActive — денормализация «не истекла и не отозвана», которую поддерживает
// фоновый свипер.
type Subscription struct {
	ID        int64      // Уникальный идентификатор подписки
	UserID    int64      // Владелец подписки
	PlanID    int64      // Тариф подписки
	StartDate time.Time  // Дата начала
	EndDate   *time.Time // Дата окончания (nil для бессрочных)
	IsActive  bool       // Подписка активна
}

// SweptSubscription — результат деактивации истекшей подписки,
// дополненный telegram-идентификатором владельца для отзыва доступа.
type SweptSubscription struct {
	ID         int64
	UserID     int64
	TelegramID int64
}

// ExpiringInfo — подписка, истекающая в ближайшем окне, вместе с данными
// владельца и тарифа. Публикуется в очередь уведомлений.
type ExpiringInfo struct {
	SubscriptionID int64     `json:"subscription_id"`
	UserID         int64     `json:"user_id"`
	TelegramID     int64     `json:"telegram_id"`
	Username       string    `json:"username"`
	PlanName       string    `json:"plan_name"`
	EndDate        time.Time `json:"end_date"`
}

// SubscriptionStatus — представление активной подписки для просмотра
// пользователем: тариф, дата окончания и оставшиеся дни.
type SubscriptionStatus struct {
	PlanName    string     `json:"plan_name"`
	IsPermanent bool       `json:"is_permanent"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	DaysLeft    int        `json:"days_left"`
}
