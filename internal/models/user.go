package models

import "time"

// User представляет пользователя платформы. Запись создаётся или обновляется
// при каждом взаимодействии; флаг IsInFreeChannel — денормализованный кеш
// членства в бесплатном канале, сверяемый с платформой, а не источник истины.
type User struct {
	ID              int64     // Уникальный идентификатор пользователя
	TelegramID      int64     // Идентификатор на платформе (уникальный)
	Username        string    // Имя пользователя на платформе
	FirstName       string    // Имя
	LastName        string    // Фамилия
	IsAdmin         bool      // Пользователь является администратором
	IsInFreeChannel bool      // Кеш членства в бесплатном канале
	JoinDate        time.Time // Дата первого взаимодействия
}

// DummyAccessCheck используется для приёма запроса проверки доступа
// к бесплатному каналу.
type DummyAccessCheck struct {
	TelegramID int64  `json:"telegram_id" validate:"required"`
	Username   string `json:"username" validate:"omitempty"`
	FirstName  string `json:"first_name" validate:"omitempty"`
	LastName   string `json:"last_name" validate:"omitempty"`
}
