package models

import "time"

// Token представляет одноразовый токен активации, привязанный к тарифу.
// Поле UsedBy равно nil до момента погашения; токен переходит в состояние
// is_used ровно один раз.
type Token struct {
	ID        int64     // Уникальный идентификатор записи
	Value     string    // Опаковое уникальное значение токена
	PlanID    int64     // Тариф, к которому привязан токен
	IsUsed    bool      // Токен погашен
	UsedBy    *int64    // Идентификатор погасившего пользователя
	CreatedAt time.Time // Дата выпуска
}

// DummyToken используется для приёма запроса на выпуск токена.
type DummyToken struct {
	PlanID int64 `json:"plan_id" validate:"required,gt=0"` // Идентификатор тарифа
}

// DummyRedeem используется для приёма запроса на погашение токена.
// Данные пользователя приходят от платформы вместе с первым взаимодействием.
type DummyRedeem struct {
	Token      string `json:"token" validate:"required,uuid"` // Значение токена из ссылки
	TelegramID int64  `json:"telegram_id" validate:"required"`
	Username   string `json:"username" validate:"omitempty"`
	FirstName  string `json:"first_name" validate:"omitempty"`
	LastName   string `json:"last_name" validate:"omitempty"`
}
