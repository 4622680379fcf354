package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/telegate/subscription-gatekeeper/internal/models"
)

// CreateToken вставляет новый непогашенный токен и возвращает запись целиком.
func (s *Storage) CreateToken(ctx context.Context, value string, planID int64) (*models.Token, error) {
	const op = "storage.CreateToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO tokens (token, plan_id, is_used)
			  VALUES ($1, $2, FALSE)
			  RETURNING id, token, plan_id, is_used, used_by, created_at`
	row := s.DB.QueryRowContext(ctx, query, value, planID)
	return scanToken(row, op)
}

// GetUnusedToken возвращает токен по значению, только если он существует
// и ещё не погашен. Несуществующий и уже погашенный токены неразличимы:
// оба случая дают ErrNotFound.
func (s *Storage) GetUnusedToken(ctx context.Context, value string) (*models.Token, error) {
	const op = "storage.GetUnusedToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, token, plan_id, is_used, used_by, created_at
			  FROM tokens
			  WHERE token = $1 AND is_used = FALSE`
	row := s.DB.QueryRowContext(ctx, query, value)
	return scanToken(row, op)
}

// ConsumeToken атомарно помечает непогашенный токен погашенным, записывая
// идентификатор потребителя. Условный UPDATE гарантирует, что при
// конкурентных попытках погашения успешной окажется ровно одна: остальные
// не найдут строку с is_used = FALSE и получат ErrNotFound.
func (s *Storage) ConsumeToken(ctx context.Context, value string, consumerID int64) (*models.Token, error) {
	const op = "storage.ConsumeToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE tokens
			  SET is_used = TRUE, used_by = $2
			  WHERE token = $1 AND is_used = FALSE
			  RETURNING id, token, plan_id, is_used, used_by, created_at`
	row := s.DB.QueryRowContext(ctx, query, value, consumerID)
	return scanToken(row, op)
}

func scanToken(row *sql.Row, op string) (*models.Token, error) {
	var result models.Token
	var usedBy sql.NullInt64
	if err := row.Scan(&result.ID, &result.Value, &result.PlanID,
		&result.IsUsed, &usedBy, &result.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if usedBy.Valid {
		result.UsedBy = &usedBy.Int64
	}
	return &result, nil
}
