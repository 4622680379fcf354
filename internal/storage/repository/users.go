package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/telegate/subscription-gatekeeper/internal/models"
)

// UpsertUser создаёт пользователя или обновляет его данные платформы
// по telegram-идентификатору и возвращает актуальную запись.
func (s *Storage) UpsertUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.UpsertUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (telegram_id, username, first_name, last_name, is_admin)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (telegram_id) DO UPDATE
			  SET username = EXCLUDED.username,
			      first_name = EXCLUDED.first_name,
			      last_name = EXCLUDED.last_name,
			      is_admin = EXCLUDED.is_admin
			  RETURNING id, telegram_id, username, first_name, last_name,
			      is_admin, is_in_free_channel, join_date`
	row := s.DB.QueryRowContext(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName, user.IsAdmin)
	return scanUser(row, op)
}

// GetUser возвращает пользователя по его ID.
func (s *Storage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, telegram_id, username, first_name, last_name,
			      is_admin, is_in_free_channel, join_date
			  FROM users
			  WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)
	return scanUser(row, op)
}

// GetUserByTelegramID возвращает пользователя по идентификатору платформы.
func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const op = "storage.GetUserByTelegramID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, telegram_id, username, first_name, last_name,
			      is_admin, is_in_free_channel, join_date
			  FROM users
			  WHERE telegram_id = $1`
	row := s.DB.QueryRowContext(ctx, query, telegramID)
	return scanUser(row, op)
}

// SetFreeChannelFlag записывает наблюдаемое состояние членства в бесплатном
// канале и возвращает количество изменённых строк. Повторная запись того же
// значения безопасна.
func (s *Storage) SetFreeChannelFlag(ctx context.Context, userID int64, inChannel bool) (int, error) {
	const op = "storage.SetFreeChannelFlag"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET is_in_free_channel = $2 WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, userID, inChannel)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListFreeChannelMembers возвращает всех пользователей, помеченных как
// участники бесплатного канала.
func (s *Storage) ListFreeChannelMembers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListFreeChannelMembers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, telegram_id, username, first_name, last_name,
			      is_admin, is_in_free_channel, join_date
			  FROM users
			  WHERE is_in_free_channel = TRUE
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		var item models.User
		if err := rows.Scan(&item.ID, &item.TelegramID, &item.Username, &item.FirstName,
			&item.LastName, &item.IsAdmin, &item.IsInFreeChannel, &item.JoinDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanUser(row *sql.Row, op string) (*models.User, error) {
	var result models.User
	if err := row.Scan(&result.ID, &result.TelegramID, &result.Username, &result.FirstName,
		&result.LastName, &result.IsAdmin, &result.IsInFreeChannel, &result.JoinDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}
