package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/telegate/subscription-gatekeeper/internal/models"
)

// CreateSubscription вставляет новую запись подписки и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_id, plan_id, start_date, end_date, is_active)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var endDate sql.NullTime
	if sub.EndDate != nil {
		endDate = sql.NullTime{Time: *sub.EndDate, Valid: true}
	}
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserID, sub.PlanID, sub.StartDate, endDate, sub.IsActive).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetActiveSubscription возвращает активную подписку пользователя:
// is_active = TRUE и дата окончания не наступила (или отсутствует).
// Если активных подписок несколько, выбор детерминирован: самая
// поздняя дата начала, при равенстве — больший ID.
func (s *Storage) GetActiveSubscription(ctx context.Context, userID int64, now time.Time) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, plan_id, start_date, end_date, is_active
			  FROM subscriptions
			  WHERE user_id = $1
			    AND is_active = TRUE
			    AND (end_date IS NULL OR end_date > $2)
			  ORDER BY start_date DESC, id DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, userID, now)

	var result models.Subscription
	var endDate sql.NullTime
	if err := row.Scan(&result.ID, &result.UserID, &result.PlanID,
		&result.StartDate, &endDate, &result.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if endDate.Valid {
		result.EndDate = &endDate.Time
	}
	return &result, nil
}

// ListExpiringWithin возвращает активные подписки, дата окончания которых
// попадает в интервал (now, until], вместе с владельцем и названием тарифа.
func (s *Storage) ListExpiringWithin(ctx context.Context, now, until time.Time) ([]*models.ExpiringInfo, error) {
	const op = "storage.ListExpiringWithin"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.id, s.user_id, u.telegram_id, u.username, p.name, s.end_date
			  FROM subscriptions s
			  JOIN users u ON u.id = s.user_id
			  JOIN plans p ON p.id = s.plan_id
			  WHERE s.is_active = TRUE
			    AND s.end_date IS NOT NULL
			    AND s.end_date > $1
			    AND s.end_date <= $2
			  ORDER BY s.end_date`
	rows, err := s.DB.QueryContext(ctx, query, now, until)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ExpiringInfo
	for rows.Next() {
		var item models.ExpiringInfo
		if err := rows.Scan(&item.SubscriptionID, &item.UserID, &item.TelegramID,
			&item.Username, &item.PlanName, &item.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SweepExpired атомарно деактивирует все подписки с наступившей датой
// окончания и возвращает затронутые строки вместе с telegram-идентификатором
// владельца. Повторный вызов без новых истечений не затрагивает ни одной
// строки.
func (s *Storage) SweepExpired(ctx context.Context, now time.Time) ([]*models.SweptSubscription, error) {
	const op = "storage.SweepExpired"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions s
			  SET is_active = FALSE
			  FROM users u
			  WHERE u.id = s.user_id
			    AND s.is_active = TRUE
			    AND s.end_date IS NOT NULL
			    AND s.end_date <= $1
			  RETURNING s.id, s.user_id, u.telegram_id`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.SweptSubscription
	for rows.Next() {
		var item models.SweptSubscription
		if err := rows.Scan(&item.ID, &item.UserID, &item.TelegramID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
