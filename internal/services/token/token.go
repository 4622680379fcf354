// Package services содержит бизнес-логику выпуска и погашения одноразовых
// токенов активации.
package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/telegate/subscription-gatekeeper/internal/models"
)

// TokenRepository определяет методы для работы с токенами в хранилище.
type TokenRepository interface {
	// CreateToken добавляет непогашенный токен и возвращает запись целиком.
	CreateToken(ctx context.Context, value string, planID int64) (*models.Token, error)
	// GetUnusedToken возвращает токен по значению, если он ещё не погашен.
	GetUnusedToken(ctx context.Context, value string) (*models.Token, error)
	// ConsumeToken атомарно помечает токен погашенным.
	ConsumeToken(ctx context.Context, value string, consumerID int64) (*models.Token, error)
}

// PlanProvider проверяет существование тарифа перед выпуском токена.
type PlanProvider interface {
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
}

// TokenService реализует бизнес-логику работы с токенами активации.
type TokenService struct {
	repo  TokenRepository
	plans PlanProvider
	log   *slog.Logger
}

// NewTokenService создает новый экземпляр TokenService.
func NewTokenService(repo TokenRepository, plans PlanProvider, log *slog.Logger) *TokenService {
	return &TokenService{
		repo:  repo,
		plans: plans,
		log:   log,
	}
}

// Issue выпускает новый токен для тарифа. Возвращает ErrNotFound хранилища,
// если тариф не существует. Значение токена — случайный UUID, вероятность
// коллизии пренебрежимо мала.
func (s *TokenService) Issue(ctx context.Context, planID int64) (*models.Token, error) {
	if _, err := s.plans.GetPlan(ctx, planID); err != nil {
		return nil, err
	}

	token, err := s.repo.CreateToken(ctx, uuid.NewString(), planID)
	if err != nil {
		return nil, err
	}
	s.log.Info("issued new token", slog.Int64("plan_id", planID), slog.Int64("id", token.ID))
	return token, nil
}

// Redeem возвращает токен по значению, только если тот существует и не
// погашен. Состояние не меняется: вызывающая сторона проверяет токен до
// того, как начнёт менять учётные записи. «Не существует» и «уже погашен»
// не различаются.
func (s *TokenService) Redeem(ctx context.Context, value string) (*models.Token, error) {
	return s.repo.GetUnusedToken(ctx, value)
}

// Consume погашает токен от имени потребителя. При конкурентных попытках
// погашения одного значения успешной окажется ровно одна; остальные получают
// ErrNotFound хранилища.
func (s *TokenService) Consume(ctx context.Context, value string, consumerID int64) (*models.Token, error) {
	token, err := s.repo.ConsumeToken(ctx, value, consumerID)
	if err != nil {
		return nil, err
	}
	s.log.Info("token consumed",
		slog.Int64("id", token.ID),
		slog.Int64("consumer", consumerID))
	return token, nil
}
