// Package models содержит доменные структуры тарифов, токенов активации,
// подписок и пользователей, а также вспомогательные типы для приёма данных
// из JSON-запросов.
package models

import "time"

// PermanentDurationDays сентинел длительности для бессрочных тарифов.
// Хранится только для отображения: дата окончания для таких тарифов
// никогда не вычисляется.
const PermanentDurationDays = 36500

// Plan представляет тариф подписки: название, длительность в днях,
// цену и признак бессрочности.
type Plan struct {
	ID           int64     // Уникальный идентификатор тарифа
	Name         string    // Название тарифа
	DurationDays int       // Длительность в днях
	Price        float64   // Цена тарифа
	IsPermanent  bool      // Бессрочный тариф (дата окончания не вычисляется)
	CreatedAt    time.Time // Дата создания
}

// DummyPlan используется для приёма данных тарифа из JSON-запроса,
// прежде чем конвертировать их в Plan.
type DummyPlan struct {
	Name         string  `json:"name" validate:"required"`            // Название тарифа
	DurationDays int     `json:"duration_days" validate:"omitempty"`  // Длительность в днях (>0, если тариф не бессрочный)
	Price        float64 `json:"price" validate:"omitempty,gte=0"`    // Цена (>=0)
	IsPermanent  bool    `json:"is_permanent" validate:"omitempty"`   // Признак бессрочности
}
