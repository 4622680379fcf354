// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — упростить формирование структурированных полей лога:
// ошибок и идентификаторов Telegram, которые встречаются почти в каждой записи.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
// Удобно использовать в логировании для единообразного вывода ошибок.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// TelegramID возвращает slog.Attr с идентификатором пользователя Telegram.
func TelegramID(id int64) slog.Attr {
	return slog.Int64("telegram_id", id)
}

// ChatID возвращает slog.Attr с идентификатором канала или чата Telegram.
func ChatID(id int64) slog.Attr {
	return slog.Int64("chat_id", id)
}
